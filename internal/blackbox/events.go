package blackbox

import (
	"bytes"
	"fmt"
	"math"
)

// EventKind is the id byte that follows an 'E' marker.
type EventKind uint8

const (
	EventSyncBeep            EventKind = 0
	EventAutotuneCycleStart  EventKind = 10
	EventAutotuneCycleResult EventKind = 11
	EventAutotuneTargets     EventKind = 12
	EventInflightAdjustment  EventKind = 13
	EventLoggingResume       EventKind = 14
	EventDisarm              EventKind = 15
	EventGTuneCycleResult    EventKind = 20
	EventFlightMode          EventKind = 30
	EventTwitchTest          EventKind = 40
	EventCustom              EventKind = 250
	EventCustomBlank         EventKind = 251
	EventLogEnd              EventKind = 255
)

var eventNames = map[EventKind]string{
	EventSyncBeep:            "SYNC_BEEP",
	EventAutotuneCycleStart:  "AUTOTUNE_CYCLE_START",
	EventAutotuneCycleResult: "AUTOTUNE_CYCLE_RESULT",
	EventAutotuneTargets:     "AUTOTUNE_TARGETS",
	EventInflightAdjustment:  "INFLIGHT_ADJUSTMENT",
	EventLoggingResume:       "LOGGING_RESUME",
	EventDisarm:              "DISARM",
	EventGTuneCycleResult:    "GTUNE_CYCLE_RESULT",
	EventFlightMode:          "FLIGHT_MODE",
	EventTwitchTest:          "TWITCH_TEST",
	EventCustom:              "CUSTOM",
	EventCustomBlank:         "CUSTOM_BLANK",
	EventLogEnd:              "LOG_END",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EVENT_%d", uint8(k))
}

// Event is a discrete occurrence recorded between frames. Iteration and Time
// are taken from the last main frame decoded before the event.
type Event struct {
	Kind      EventKind
	Name      string
	Data      map[string]any
	Iteration int64
	Time      int64
	Offset    int64
}

// EndOfLogMessage terminates the LOG_END event payload.
var EndOfLogMessage = []byte("End of log\x00")

type adjustmentFunc struct {
	name   string
	scale  float64
	scalef float64
}

var inflightAdjustments = []adjustmentFunc{
	{name: "None"},
	{name: "RC Rate", scale: 0.01},
	{name: "RC Expo", scale: 0.01},
	{name: "Throttle Expo", scale: 0.01},
	{name: "Pitch & Roll Rate", scale: 0.01},
	{name: "Yaw rate", scale: 0.01},
	{name: "Pitch & Roll P", scale: 0.1, scalef: 1},
	{name: "Pitch & Roll I", scale: 0.001, scalef: 0.1},
	{name: "Pitch & Roll D", scalef: 1000},
	{name: "Yaw P", scale: 0.1, scalef: 1},
	{name: "Yaw I", scale: 0.001, scalef: 0.1},
	{name: "Yaw D", scalef: 1000},
	{name: "Rate Profile"},
	{name: "Pitch Rate", scale: 0.01},
	{name: "Roll Rate", scale: 0.01},
	{name: "Pitch P", scale: 0.1, scalef: 1},
	{name: "Pitch I", scale: 0.001, scalef: 0.1},
	{name: "Pitch D", scalef: 1000},
	{name: "Roll P", scale: 0.1, scalef: 1},
	{name: "Roll I", scale: 0.001, scalef: 0.1},
	{name: "Roll D", scalef: 1000},
}

// decodeEvent reads the kind byte and payload that follow an 'E' marker.
func decodeEvent(s *stream) (Event, error) {
	k, err := s.readByte()
	if err != nil {
		return Event{}, err
	}
	kind := EventKind(k)
	ev := Event{Kind: kind, Name: kind.String(), Data: map[string]any{}}

	uvb := func(name string) error {
		v, err := s.readUnsignedVB()
		if err != nil {
			return err
		}
		ev.Data[name] = int64(v)
		return nil
	}
	u8 := func(names ...string) error {
		for _, name := range names {
			b, err := s.readByte()
			if err != nil {
				return err
			}
			ev.Data[name] = int64(b)
		}
		return nil
	}
	s8 := func(name string) error {
		v, err := s.readS8()
		if err != nil {
			return err
		}
		ev.Data[name] = int64(v)
		return nil
	}
	s16 := func(name string) error {
		v, err := s.readS16LE()
		if err != nil {
			return err
		}
		ev.Data[name] = int64(v)
		return nil
	}

	switch kind {
	case EventSyncBeep:
		err = uvb("time")
	case EventAutotuneCycleStart:
		if err = u8("phase", "cycle", "p", "i", "d"); err == nil {
			cycle := ev.Data["cycle"].(int64)
			ev.Data["rising"] = cycle&0x80 != 0
			ev.Data["cycle"] = cycle & 0x7F
		}
	case EventAutotuneCycleResult:
		err = u8("flags", "p", "i", "d")
	case EventAutotuneTargets:
		err = firstErr(s16("currentAngle"), s8("targetAngle"), s8("targetAngleAtPeak"), s16("firstPeakAngle"), s16("secondPeakAngle"))
	case EventInflightAdjustment:
		err = decodeInflightAdjustment(s, &ev)
	case EventLoggingResume:
		err = firstErr(uvb("logIteration"), uvb("currentTime"))
	case EventDisarm:
		err = uvb("reason")
	case EventGTuneCycleResult:
		if err = u8("axis"); err == nil {
			var v int32
			if v, err = s.readSignedVB(); err == nil {
				ev.Data["gyroAVG"] = int64(v)
				err = s16("newP")
			}
		}
	case EventFlightMode:
		err = firstErr(uvb("newFlags"), uvb("oldFlags"))
	case EventTwitchTest, EventCustom, EventCustomBlank:
	case EventLogEnd:
		var msg []byte
		msg, err = s.readBytes(len(EndOfLogMessage))
		if err == nil && !bytes.Equal(msg, EndOfLogMessage) {
			err = fmt.Errorf("%w: log end without end-of-log message", ErrMalformedEvent)
		}
	default:
		return Event{}, fmt.Errorf("%w: %d", ErrUnknownEventKind, k)
	}
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func decodeInflightAdjustment(s *stream, ev *Event) error {
	b, err := s.readByte()
	if err != nil {
		return err
	}
	fn := int(b & 0x7F)
	isFloat := b >= 0x80
	var value float64
	if isFloat {
		bits, err := s.readU32LE()
		if err != nil {
			return err
		}
		value = float64(math.Float32frombits(bits))
	} else {
		v, err := s.readSignedVB()
		if err != nil {
			return err
		}
		value = float64(v)
	}
	ev.Data["func"] = int64(fn)
	ev.Data["name"] = "Unknown"
	if fn < len(inflightAdjustments) {
		adj := inflightAdjustments[fn]
		ev.Data["name"] = adj.name
		scale := 1.0
		if adj.scale != 0 {
			scale = adj.scale
		}
		if isFloat && adj.scalef != 0 {
			scale = adj.scalef
		}
		value = math.Round(value*scale*10000) / 10000
	}
	ev.Data["value"] = value
	return nil
}
