// Package logging builds zerolog loggers with the repository's defaults.
//
// Loggers are values handed down explicitly; nothing here keeps a process-wide
// root logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/artyom/imgmatch/internal/config"
)

// Field names shared across components.
const (
	FieldComponent = "component"
	FieldSession   = "session"
	FieldPath      = "path"
)

// Options configures the logger.
type Options struct {
	Level     string
	Format    string
	Component string
	Writer    io.Writer
	NoColor   bool
}

// New constructs a logger from opts. Unknown formats are rejected; unknown
// levels fall back to info.
func New(opts Options) (zerolog.Logger, error) {
	var w io.Writer = os.Stderr
	if opts.Writer != nil {
		w = opts.Writer
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: opts.NoColor}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	ctx := zerolog.New(w).Level(ParseLevel(opts.Level)).With().Timestamp()
	if opts.Component != "" {
		ctx = ctx.Str(FieldComponent, opts.Component)
	}
	return ctx.Logger(), nil
}

// NewFromConfig creates a logger using the [logging] section of cfg.
func NewFromConfig(cfg *config.Config, w io.Writer, noColor bool) (zerolog.Logger, error) {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return New(Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Writer:  w,
		NoColor: noColor,
	})
}

// Named returns a child logger tagged with a component field.
func Named(l zerolog.Logger, component string) zerolog.Logger {
	if component == "" {
		return l
	}
	return l.With().Str(FieldComponent, component).Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
