package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"example.com/bblgate/internal/common"
)

func TestBuildSaveVerify(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}
	src := write("flight.bbl", "H Product:Blackbox\n")
	csvPath := write("flight.csv", "loopIteration,time\n0,1000\n")

	m, err := Build(src, 1, []string{csvPath})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.Source == nil || m.Source.Type != "blackbox" || m.Source.Sha256 != common.Sha256OfBytes([]byte("H Product:Blackbox\n")) {
		t.Fatalf("source item = %+v", m.Source)
	}
	if len(m.Items) != 1 || m.Items[0].Type != "csv" || m.Items[0].Size != 26 {
		t.Fatalf("items = %+v", m.Items)
	}
	m.Add(filepath.Join(dir, "metrics.prom"), 0, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")
	write("metrics.prom", "")

	out := filepath.Join(dir, "manifest.json")
	if err := Save(m, out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(out)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	changed, err := Verify(loaded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(changed) != 0 {
		t.Fatalf("unexpected changes: %v", changed)
	}

	write("flight.csv", "tampered\n")
	if err := os.Remove(filepath.Join(dir, "metrics.prom")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	changed, err = Verify(loaded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(changed) != 2 || changed[0] != csvPath {
		t.Fatalf("changed = %v", changed)
	}
}

func TestBuildMissingFile(t *testing.T) {
	if _, err := Build(filepath.Join(t.TempDir(), "missing.bbl"), 1, nil); err == nil {
		t.Fatalf("expected error for missing source")
	}
}
