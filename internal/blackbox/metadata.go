package blackbox

import (
	"strconv"
	"strings"
)

// Metadata holds the non-field header lines of one log. It is built once when
// the header is parsed and is read-only afterwards.
type Metadata struct {
	Product          string
	DataVersion      int
	FirmwareType     string
	FirmwareRevision string
	FirmwareDate     string
	BoardInformation string
	CraftName        string
	LogStartDatetime string

	IInterval      int
	PIntervalNum   int
	PIntervalDenom int

	keys   []string
	raw    map[string]string
	values map[string][]int64
}

func newMetadata() *Metadata {
	return &Metadata{
		DataVersion:    1,
		IInterval:      32,
		PIntervalNum:   1,
		PIntervalDenom: 1,
		raw:            make(map[string]string),
		values:         make(map[string][]int64),
	}
}

func (m *Metadata) set(key, value string) {
	if _, seen := m.raw[key]; !seen {
		m.keys = append(m.keys, key)
	}
	m.raw[key] = value
	if nums, ok := parseIntList(value); ok {
		m.values[key] = nums
	} else {
		delete(m.values, key)
	}

	switch key {
	case "Product":
		m.Product = value
	case "Data version":
		if v, ok := m.Value(key); ok {
			m.DataVersion = int(v)
		}
	case "Firmware type":
		m.FirmwareType = value
	case "Firmware revision":
		m.FirmwareRevision = value
	case "Firmware date":
		m.FirmwareDate = value
	case "Board information":
		m.BoardInformation = value
	case "Craft name":
		m.CraftName = value
	case "Log start datetime":
		m.LogStartDatetime = value
	case "I interval":
		if v, ok := m.Value(key); ok && v > 0 {
			m.IInterval = int(v)
		}
	case "P interval":
		// Only the "num/denom" form describes a logging ratio.
		num, denom, found := strings.Cut(value, "/")
		if !found {
			return
		}
		n, errN := strconv.Atoi(strings.TrimSpace(num))
		d, errD := strconv.Atoi(strings.TrimSpace(denom))
		if errN == nil && errD == nil && n > 0 && d > 0 {
			m.PIntervalNum, m.PIntervalDenom = n, d
		}
	}
}

// Header returns the raw text of a header line.
func (m *Metadata) Header(name string) (string, bool) {
	v, ok := m.raw[name]
	return v, ok
}

// Keys returns header names in file order.
func (m *Metadata) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Value returns a header holding a single integer (decimal or 0x hex).
func (m *Metadata) Value(name string) (int64, bool) {
	nums, ok := m.values[name]
	if !ok || len(nums) != 1 {
		return 0, false
	}
	return nums[0], true
}

// List returns a header holding a comma separated list of integers.
func (m *Metadata) List(name string) ([]int64, bool) {
	nums, ok := m.values[name]
	if !ok {
		return nil, false
	}
	out := make([]int64, len(nums))
	copy(out, nums)
	return out, true
}

// Sysconfig returns every integer-valued header.
func (m *Metadata) Sysconfig() map[string][]int64 {
	out := make(map[string][]int64, len(m.values))
	for k, v := range m.values {
		out[k] = append([]int64(nil), v...)
	}
	return out
}

// shouldHaveFrame reports whether the firmware was configured to log the
// main frame of the given loop iteration.
func (m *Metadata) shouldHaveFrame(iteration int64) bool {
	i := int64(m.IInterval)
	num := int64(m.PIntervalNum)
	denom := int64(m.PIntervalDenom)
	return (iteration%i+num-1)%denom < num
}

// skippedFrames counts iterations after last that the firmware deliberately
// did not log.
func (m *Metadata) skippedFrames(last int64) int64 {
	var count int64
	for it := last + 1; !m.shouldHaveFrame(it) && count < int64(m.IInterval); it++ {
		count++
	}
	return count
}

func parseIntList(value string) ([]int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, false
	}
	parts := strings.Split(value, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 0, 64)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}
