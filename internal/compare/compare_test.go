package compare

import (
	"errors"
	"strings"
	"testing"
)

func TestCSVIdentical(t *testing.T) {
	data := "loopIteration,time,motor[0]\n0,1000,1100\n1,1125,1105\n"
	res, err := CSV(strings.NewReader(data), strings.NewReader(data), Options{})
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if !res.OK() || res.Rows != 2 || res.Columns != 3 {
		t.Fatalf("result = %+v", res)
	}
}

func TestCSVByColumnName(t *testing.T) {
	got := "loopIteration,time,motor[0],debug[0]\n0,1000,1100,7\n1,1125,1106,8\n"
	// Reference in blackbox_decode layout: padded separators, different order,
	// one column we do not produce.
	ref := "loopIteration, motor[0], time, energyCumulative (mAh)\n0, 1100, 1000, 0\n1, 1105, 1125, 0\n"
	res, err := CSV(strings.NewReader(got), strings.NewReader(ref), Options{})
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if res.Columns != 3 {
		t.Fatalf("Columns = %d, want 3", res.Columns)
	}
	if len(res.MissingColumns) != 1 || res.MissingColumns[0] != "energyCumulative (mAh)" {
		t.Fatalf("MissingColumns = %v", res.MissingColumns)
	}
	if len(res.ExtraColumns) != 1 || res.ExtraColumns[0] != "debug[0]" {
		t.Fatalf("ExtraColumns = %v", res.ExtraColumns)
	}
	if res.MismatchCount != 1 {
		t.Fatalf("MismatchCount = %d, want 1", res.MismatchCount)
	}
	want := Mismatch{Row: 2, Column: "motor[0]", Got: "1106", Want: "1105"}
	if res.Mismatches[0] != want {
		t.Fatalf("mismatch = %+v, want %+v", res.Mismatches[0], want)
	}
	if res.OK() {
		t.Fatalf("result with mismatches reported OK")
	}

	res, err = CSV(strings.NewReader(got), strings.NewReader(ref), Options{Tolerance: 1})
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if res.MismatchCount != 0 {
		t.Fatalf("tolerance not applied: %+v", res.Mismatches)
	}
}

func TestCSVRowCountAndReportCap(t *testing.T) {
	got := "a\n1\n2\n3\n4\n"
	ref := "a\n9\n9\n9\n"
	res, err := CSV(strings.NewReader(got), strings.NewReader(ref), Options{MaxReport: 2})
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if res.Rows != 4 || res.RefRows != 3 {
		t.Fatalf("rows = %d/%d, want 4/3", res.Rows, res.RefRows)
	}
	if res.MismatchCount != 3 || len(res.Mismatches) != 2 {
		t.Fatalf("mismatches = %d kept of %d", len(res.Mismatches), res.MismatchCount)
	}
	if !strings.Contains(res.String(), "... 1 more") {
		t.Fatalf("String() = %q", res.String())
	}
}

func TestCSVEmpty(t *testing.T) {
	_, err := CSV(strings.NewReader(""), strings.NewReader("a\n1\n"), Options{})
	if !errors.Is(err, ErrNoHeader) {
		t.Fatalf("expected ErrNoHeader, got %v", err)
	}
}
