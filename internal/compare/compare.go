// Package compare checks decoded merged rows against a reference CSV, such
// as the output of blackbox_decode.
package compare

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

type Options struct {
	// Tolerance is the largest absolute difference accepted between two
	// numeric cells.
	Tolerance float64
	// MaxReport caps the number of mismatches kept in the result. Zero keeps
	// 20; a negative value keeps all.
	MaxReport int
}

// Mismatch is one differing cell. Row is 1-based and excludes the header.
type Mismatch struct {
	Row    int
	Column string
	Got    string
	Want   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("row %d column %s: got %q, want %q", m.Row, m.Column, m.Got, m.Want)
}

type Result struct {
	Rows    int
	RefRows int
	// Columns is the number of columns compared.
	Columns        int
	MissingColumns []string
	ExtraColumns   []string
	MismatchCount  int
	Mismatches     []Mismatch
}

// OK reports whether every reference column was present, the row counts
// agree and no cell differed.
func (r Result) OK() bool {
	return len(r.MissingColumns) == 0 && r.Rows == r.RefRows && r.MismatchCount == 0
}

func (r Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rows: %d decoded, %d reference; columns compared: %d", r.Rows, r.RefRows, r.Columns)
	if len(r.MissingColumns) > 0 {
		fmt.Fprintf(&b, "\nmissing columns: %s", strings.Join(r.MissingColumns, ", "))
	}
	if len(r.ExtraColumns) > 0 {
		fmt.Fprintf(&b, "\nextra columns: %s", strings.Join(r.ExtraColumns, ", "))
	}
	fmt.Fprintf(&b, "\nmismatches: %d", r.MismatchCount)
	for _, m := range r.Mismatches {
		b.WriteString("\n  ")
		b.WriteString(m.String())
	}
	if hidden := r.MismatchCount - len(r.Mismatches); hidden > 0 {
		fmt.Fprintf(&b, "\n  ... %d more", hidden)
	}
	return b.String()
}

var ErrNoHeader = errors.New("csv has no header row")

// CSV compares the decoded rows in got with the reference rows in ref.
// Columns are matched by name; surrounding whitespace is ignored.
func CSV(got, ref io.Reader, opts Options) (Result, error) {
	if opts.MaxReport == 0 {
		opts.MaxReport = 20
	}
	var res Result
	gr := newReader(got)
	rr := newReader(ref)
	gotHeader, err := gr.Read()
	if err != nil {
		return res, headerErr("decoded", err)
	}
	refHeader, err := rr.Read()
	if err != nil {
		return res, headerErr("reference", err)
	}

	gotIndex := make(map[string]int, len(gotHeader))
	for i, name := range gotHeader {
		gotIndex[strings.TrimSpace(name)] = i
	}
	type pair struct {
		name     string
		got, ref int
	}
	var pairs []pair
	refNames := make(map[string]bool, len(refHeader))
	for i, name := range refHeader {
		name = strings.TrimSpace(name)
		refNames[name] = true
		if gi, ok := gotIndex[name]; ok {
			pairs = append(pairs, pair{name: name, got: gi, ref: i})
		} else {
			res.MissingColumns = append(res.MissingColumns, name)
		}
	}
	for _, name := range gotHeader {
		if name = strings.TrimSpace(name); !refNames[name] {
			res.ExtraColumns = append(res.ExtraColumns, name)
		}
	}
	res.Columns = len(pairs)

	for {
		g, gerr := gr.Read()
		r, rerr := rr.Read()
		if gerr != nil && gerr != io.EOF {
			return res, fmt.Errorf("decoded row %d: %w", res.Rows+1, gerr)
		}
		if rerr != nil && rerr != io.EOF {
			return res, fmt.Errorf("reference row %d: %w", res.RefRows+1, rerr)
		}
		if gerr == nil {
			res.Rows++
		}
		if rerr == nil {
			res.RefRows++
		}
		if gerr != nil || rerr != nil {
			if gerr == io.EOF && rerr == io.EOF {
				return res, nil
			}
			continue
		}
		for _, p := range pairs {
			gv, rv := cell(g, p.got), cell(r, p.ref)
			if equal(gv, rv, opts.Tolerance) {
				continue
			}
			res.MismatchCount++
			if opts.MaxReport < 0 || len(res.Mismatches) < opts.MaxReport {
				res.Mismatches = append(res.Mismatches, Mismatch{Row: res.Rows, Column: p.name, Got: gv, Want: rv})
			}
		}
	}
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

func headerErr(which string, err error) error {
	if err == io.EOF {
		return fmt.Errorf("%s: %w", which, ErrNoHeader)
	}
	return fmt.Errorf("%s header: %w", which, err)
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func equal(a, b string, tolerance float64) bool {
	if a == b {
		return true
	}
	af, aerr := strconv.ParseFloat(a, 64)
	bf, berr := strconv.ParseFloat(b, 64)
	if aerr != nil || berr != nil {
		return false
	}
	return math.Abs(af-bf) <= tolerance
}
