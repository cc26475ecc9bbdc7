package samples

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

// ReferenceCSV renders the rows a reference decoder prints for BuildFlight:
// one row per main frame, followed by the latest slow and GPS values.
func ReferenceCSV(iterations int) []byte {
	spec := FlightSpec()
	var header []string
	for _, f := range spec.Main {
		header = append(header, f.Name)
	}
	for _, f := range spec.Slow {
		header = append(header, f.Name)
	}
	for _, f := range spec.GPS {
		if f.Name == "time" {
			continue
		}
		header = append(header, f.Name)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(header)
	var slow, gps []string
	for i := 0; i < iterations; i++ {
		it := int64(i)
		if i%SlowInterval == 0 {
			slow = formatInts(SlowValues(it))
		}
		row := formatInts(MainValues(it))
		row = append(row, pad(slow, len(spec.Slow))...)
		row = append(row, pad(gps, len(spec.GPS)-1)...)
		_ = w.Write(row)
		if i%GPSInterval == GPSInterval/2 {
			gps = formatInts(GPSValues(it)[1:])
		}
	}
	w.Flush()
	return buf.Bytes()
}

func formatInts(values []int64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatInt(v, 10)
	}
	return out
}

func pad(values []string, n int) []string {
	if values != nil {
		return values
	}
	return make([]string, n)
}
