package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger = log.New(os.Stderr, "[bblgate] ", log.LstdFlags|log.Lmicroseconds)
	debug  atomic.Bool
)

// LogConfig controls where log lines go besides stderr.
type LogConfig struct {
	Directory  string
	FileName   string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
	Debug      bool
}

func Logf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}

// Debugf logs only when debug output is enabled.
func Debugf(format string, args ...interface{}) {
	if debug.Load() {
		logger.Printf("debug: "+format, args...)
	}
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

func SetDebug(on bool) {
	debug.Store(on)
}

func DebugEnabled() bool {
	return debug.Load()
}

// SetOutput replaces the log destination. Tests use it to capture output.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetupLogging mirrors log output into a size-rotated file when a directory
// is configured.
func SetupLogging(cfg LogConfig) error {
	SetDebug(cfg.Debug)
	if cfg.Directory == "" {
		logger.SetOutput(os.Stderr)
		return nil
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	name := cfg.FileName
	if name == "" {
		name = "bblgate.log"
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, name),
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return nil
}
