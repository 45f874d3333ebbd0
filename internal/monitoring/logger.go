package monitoring

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// RotateOptions bounds the on-disk capture log.
type RotateOptions struct {
	Dir        string
	FileName   string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

func (o RotateOptions) normalize() RotateOptions {
	if o.FileName == "" {
		o.FileName = "telemetry.log"
	}
	if o.MaxSizeMB <= 0 {
		o.MaxSizeMB = 25
	}
	if o.MaxAgeDays <= 0 {
		o.MaxAgeDays = 7
	}
	if o.MaxBackups <= 0 {
		o.MaxBackups = 5
	}
	return o
}

// SetupRotatingLog points the standard logger at stdout plus a rotated file
// under opts.Dir. The returned closer releases the file handle.
func SetupRotatingLog(opts RotateOptions) (io.Closer, error) {
	opts = opts.normalize()
	if opts.Dir == "" {
		return nil, fmt.Errorf("log directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, opts.FileName),
		MaxSize:    opts.MaxSizeMB,
		MaxAge:     opts.MaxAgeDays,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return rotator, nil
}
