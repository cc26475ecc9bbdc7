package samples

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"example.com/bblgate/internal/blackbox"
)

const (
	// File names exposed for generator consumers.
	FlightFileName   = "sample.bbl"
	MultiLogFileName = "sample-multi.bbl"
	CorruptFileName  = "sample-corrupt.bbl"
	ReferenceCSVName = "sample.csv"

	DefaultIterations = 256
	IntraInterval     = 32
	SlowInterval      = 64
	GPSInterval       = 16

	baseTimeUs  int64 = 1_000_000
	loopTimeUs  int64 = 125
	gpsLagUs    int64 = 37
	modeChangeI int64 = 100
)

// FlightOptions shapes the deterministic sample flight.
type FlightOptions struct {
	Iterations int
	// Garbage is written at the start of the given iteration.
	Garbage map[int][]byte
	// SkipLogEnd leaves the log open ended.
	SkipLogEnd bool
}

// FlightSpec is a trimmed Betaflight 4.x header exercising every encoding
// and every predictor the decoder supports.
func FlightSpec() LogSpec {
	var (
		zero   = blackbox.PredictorZero
		prev   = blackbox.PredictorPrevious
		svb    = blackbox.EncodingSignedVB
		uvb    = blackbox.EncodingUnsignedVB
		tag8x8 = blackbox.EncodingTag8_8SVB
	)
	main := []FieldSpec{
		{Name: "loopIteration", IPredictor: zero, IEncoding: uvb, PPredictor: blackbox.PredictorIncrement, PEncoding: blackbox.EncodingNull},
		{Name: "time", IPredictor: zero, IEncoding: uvb, PPredictor: blackbox.PredictorStraightLine, PEncoding: svb},
	}
	for k := 0; k < 3; k++ {
		main = append(main, FieldSpec{Name: fmt.Sprintf("axisP[%d]", k), Signed: true, IPredictor: zero, IEncoding: svb, PPredictor: prev, PEncoding: blackbox.EncodingTag2_3S32})
	}
	for k := 0; k < 3; k++ {
		main = append(main, FieldSpec{Name: fmt.Sprintf("gyroADC[%d]", k), Signed: true, IPredictor: zero, IEncoding: svb, PPredictor: blackbox.PredictorAverage2, PEncoding: svb})
	}
	for k := 0; k < 3; k++ {
		main = append(main, FieldSpec{Name: fmt.Sprintf("rcCommand[%d]", k), Signed: true, IPredictor: zero, IEncoding: svb, PPredictor: prev, PEncoding: blackbox.EncodingTag8_4S16})
	}
	main = append(main,
		FieldSpec{Name: "rcCommand[3]", IPredictor: blackbox.PredictorMinThrottle, IEncoding: uvb, PPredictor: prev, PEncoding: blackbox.EncodingTag8_4S16},
		FieldSpec{Name: "vbatLatest", IPredictor: blackbox.PredictorVBatRef, IEncoding: blackbox.EncodingNeg14Bit, PPredictor: prev, PEncoding: tag8x8},
		FieldSpec{Name: "motor[0]", IPredictor: blackbox.PredictorMinMotor, IEncoding: uvb, PPredictor: prev, PEncoding: tag8x8},
	)
	for k := 1; k < 4; k++ {
		main = append(main, FieldSpec{Name: fmt.Sprintf("motor[%d]", k), IPredictor: blackbox.PredictorMotor0, IEncoding: svb, PPredictor: prev, PEncoding: tag8x8})
	}

	return LogSpec{
		Headers: [][2]string{
			{"Firmware type", "Cleanflight"},
			{"Firmware revision", "Betaflight 4.4.2 (8a9b5b5c1) STM32F7X2"},
			{"Firmware date", "Jun 17 2023 12:00:00"},
			{"Board information", "MTKS MATEKF722"},
			{"Log start datetime", "2023-06-17T12:00:00.000+00:00"},
			{"Craft name", "bblgate"},
			{"I interval", fmt.Sprint(IntraInterval)},
			{"P interval", "1/1"},
			{"minthrottle", "1070"},
			{"maxthrottle", "2000"},
			{"vbatref", "420"},
			{"motorOutput", "48,2047"},
			{"looptime", fmt.Sprint(loopTimeUs)},
		},
		Main: main,
		Slow: []AuxSpec{
			{Name: "flightModeFlags", Predictor: zero, Encoding: uvb},
			{Name: "stateFlags", Predictor: zero, Encoding: uvb},
			{Name: "failsafePhase", Predictor: zero, Encoding: uvb},
		},
		GPS: []AuxSpec{
			{Name: "time", Predictor: blackbox.PredictorLastMainFrameTime, Encoding: uvb},
			{Name: "GPS_numSat", Predictor: zero, Encoding: uvb},
			{Name: "GPS_altitude", Signed: true, Predictor: prev, Encoding: svb},
			{Name: "GPS_speed", Predictor: prev, Encoding: svb},
		},
	}
}

// MainValues returns the absolute main frame values logged at iteration it,
// in FlightSpec field order.
func MainValues(it int64) []int64 {
	values := []int64{it, baseTimeUs + it*loopTimeUs}
	for k := int64(0); k < 3; k++ {
		values = append(values, (it*7+k*13)%41-20)
	}
	for k := int64(0); k < 3; k++ {
		values = append(values, (it*11+k*17)%301-150)
	}
	for k := int64(0); k < 3; k++ {
		values = append(values, (it*3+k*5)%201-100)
	}
	values = append(values, 1200+it%300, 410-it/64)
	motor0 := 1100 + (it*5)%400
	values = append(values, motor0)
	for k := int64(1); k < 4; k++ {
		values = append(values, motor0+k*9-13)
	}
	return values
}

func SlowValues(it int64) []int64 {
	mode := int64(1)
	if it >= modeChangeI {
		mode = 3
	}
	return []int64{mode, 0, 0}
}

func GPSValues(it int64) []int64 {
	mainTime := baseTimeUs + it*loopTimeUs
	return []int64{mainTime + gpsLagUs, 8 + (it/64)%4, 120 + it/16, 5 + (it/16)%3}
}

// BuildFlight writes the deterministic sample flight.
func BuildFlight(opts FlightOptions) ([]byte, error) {
	n := opts.Iterations
	if n <= 0 {
		n = DefaultIterations
	}
	b, err := NewBuilder(FlightSpec())
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		it := int64(i)
		if g, ok := opts.Garbage[i]; ok {
			b.Raw(g...)
		}
		// The firmware writes a due slow frame ahead of the main frame.
		if i%SlowInterval == 0 {
			if err := b.Frame(blackbox.FrameSlow, SlowValues(it)...); err != nil {
				return nil, fmt.Errorf("iteration %d: %w", i, err)
			}
		}
		ft := blackbox.FrameInter
		if i%IntraInterval == 0 {
			ft = blackbox.FrameIntra
		}
		if err := b.Frame(ft, MainValues(it)...); err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
		if i == 0 {
			b.SyncBeep(uint32(baseTimeUs))
		}
		if it == modeChangeI {
			b.FlightMode(3, 1)
		}
		if i%GPSInterval == GPSInterval/2 {
			if err := b.Frame(blackbox.FrameGPS, GPSValues(it)...); err != nil {
				return nil, fmt.Errorf("iteration %d: %w", i, err)
			}
		}
	}
	b.Disarm(4)
	if !opts.SkipLogEnd {
		b.LogEnd()
	}
	return b.Bytes(), nil
}

// BuildMultiLog concatenates two flights the way a flight controller appends
// a new log on every arm.
func BuildMultiLog() ([]byte, error) {
	first, err := BuildFlight(FlightOptions{Iterations: DefaultIterations})
	if err != nil {
		return nil, err
	}
	second, err := BuildFlight(FlightOptions{Iterations: DefaultIterations / 2})
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

// corruptSplices are the iterations BuildCorrupt splices garbage ahead of.
// None of them starts an intra interval or follows a GPS frame.
var corruptSplices = map[int][]byte{
	10:  bytes.Repeat([]byte{0x00}, 7),
	77:  bytes.Repeat([]byte{0xFF}, 64),
	150: {0x01, 0x02, 0x03, 0xFE},
}

// BuildCorrupt writes the sample flight with runs of bytes that are not
// frame markers spliced in at frame boundaries.
func BuildCorrupt() ([]byte, error) {
	return BuildFlight(FlightOptions{Iterations: DefaultIterations, Garbage: corruptSplices})
}

// CorruptDropped reports whether decoding BuildCorrupt loses the main and GPS
// frames of iteration it. A splice costs the main frame ahead of it, which is
// no longer followed by a marker, and every inter frame up to the next intra.
func CorruptDropped(it int64) bool {
	for at := range corruptSplices {
		if DroppedBySplice(at, it, true) {
			return true
		}
	}
	return false
}

// DroppedBySplice reports whether a splice ahead of iteration at loses the
// main frame of iteration it. withPrevious covers splices that do not start
// with a frame marker, which cost the frame before them as well.
func DroppedBySplice(at int, it int64, withPrevious bool) bool {
	first := int64(at)
	if withPrevious {
		first--
	}
	next := int64((at/IntraInterval + 1) * IntraInterval)
	return it >= first && it < next
}

// CorruptCounts reports how many frames of each type decoding BuildCorrupt
// yields.
func CorruptCounts() map[blackbox.FrameType]int {
	counts := map[blackbox.FrameType]int{}
	for _, f := range FlightFrames(DefaultIterations, CorruptDropped) {
		counts[f.Type]++
	}
	return counts
}

// ExpectedFrame is one frame of a BuildFlight log.
type ExpectedFrame struct {
	Type      blackbox.FrameType
	Iteration int64
	Values    []int64
}

// FlightFrames lists the frames of a BuildFlight log in stream order. Main
// and GPS frames of iterations for which dropped reports true are left out;
// slow frames never depend on history and are always kept.
func FlightFrames(iterations int, dropped func(int64) bool) []ExpectedFrame {
	var out []ExpectedFrame
	for i := 0; i < iterations; i++ {
		it := int64(i)
		lost := dropped != nil && dropped(it)
		if i%SlowInterval == 0 {
			out = append(out, ExpectedFrame{Type: blackbox.FrameSlow, Iteration: it, Values: SlowValues(it)})
		}
		if lost {
			continue
		}
		ft := blackbox.FrameInter
		if i%IntraInterval == 0 {
			ft = blackbox.FrameIntra
		}
		out = append(out, ExpectedFrame{Type: ft, Iteration: it, Values: MainValues(it)})
		if i%GPSInterval == GPSInterval/2 {
			out = append(out, ExpectedFrame{Type: blackbox.FrameGPS, Iteration: it, Values: GPSValues(it)})
		}
	}
	return out
}

// WriteFiles materializes the generated assets under dir.
func WriteFiles(dir string) error {
	flight, err := BuildFlight(FlightOptions{})
	if err != nil {
		return err
	}
	multi, err := BuildMultiLog()
	if err != nil {
		return err
	}
	corrupt, err := BuildCorrupt()
	if err != nil {
		return err
	}
	for name, data := range map[string][]byte{
		FlightFileName:   flight,
		MultiLogFileName: multi,
		CorruptFileName:  corrupt,
		ReferenceCSVName: ReferenceCSV(DefaultIterations),
	} {
		if err := writeFileIfChanged(filepath.Join(dir, name), data); err != nil {
			return err
		}
	}
	return nil
}

func writeFileIfChanged(path string, data []byte) error {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	return nil
}
