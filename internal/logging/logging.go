// Package logging builds the zap logger used across txp.
//
// Logs always go to a side channel (stderr by default) so stdout carries
// only the account report.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configure New.
type Options struct {
	Level  string    // error|warn|info|debug|trace (default: error)
	Format string    // console|json (default: console)
	Output io.Writer // default: os.Stderr
}

// ParseLevel maps a level name to a zap level. "trace" maps to debug,
// which is the most verbose level zap has. Empty means error.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return zapcore.ErrorLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "debug", "trace":
		return zapcore.DebugLevel, nil
	}
	return zapcore.ErrorLevel, fmt.Errorf("logging: invalid level %q (want error, warn, info, debug or trace)", s)
}

// ValidFormat reports whether f names a supported encoder.
func ValidFormat(f string) bool {
	switch strings.ToLower(f) {
	case "", FormatConsole, FormatJSON:
		return true
	}
	return false
}

// New builds a logger from opts.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if !ValidFormat(opts.Format) {
		return nil, fmt.Errorf("logging: invalid format %q (want console or json)", opts.Format)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if strings.ToLower(opts.Format) == FormatJSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.AddSync(out))), nil
}
