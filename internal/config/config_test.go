package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bblctl.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	opts := cfg.DecodeOptions()
	if opts.ResyncWindow != 65536 || opts.MaxIterationJump != 5000 || opts.MaxTimeJump != 10_000_000 || opts.LogIndex != 1 {
		t.Fatalf("unexpected decode options %+v", opts)
	}
	if cfg.Export.Format != "csv" || !cfg.EventsIncluded() {
		t.Fatalf("unexpected export config %+v", cfg.Export)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
decode:
  resyncWindow: 4096
  maxTimeJumpUs: -1
  logIndex: 2
export:
  format: NDJSON
  includeEvents: false
report:
  title: Bench flight
metrics:
  textfile: out/bblctl.prom
logs:
  directory: logs
  debug: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Decode.ResyncWindow != 4096 || cfg.Decode.MaxTimeJumpUs != -1 || cfg.Decode.MaxIterationJump != 5000 {
		t.Fatalf("decode section = %+v", cfg.Decode)
	}
	if cfg.Export.Format != "ndjson" || cfg.EventsIncluded() {
		t.Fatalf("export section = %+v", cfg.Export)
	}
	if cfg.Report.Title != "Bench flight" || cfg.Report.QRSize != 128 {
		t.Fatalf("report section = %+v", cfg.Report)
	}
	base := filepath.Dir(path)
	if cfg.Metrics.Textfile != filepath.Join(base, "out", "bblctl.prom") {
		t.Fatalf("textfile = %q", cfg.Metrics.Textfile)
	}
	lc := cfg.LogConfig()
	if lc.Directory != filepath.Join(base, "logs") || !lc.Debug || lc.MaxSizeMB != 25 {
		t.Fatalf("log config = %+v", lc)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"unknown format": {"export:\n  format: xml\n", "export.format"},
		"bad log index":  {"decode:\n  logIndex: -3\n", "decode.logIndex"},
		"bad qr size":    {"report:\n  qrSize: 4096\n", "report.qrSize"},
		"unknown key":    {"decode:\n  window: 12\n", "window"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
