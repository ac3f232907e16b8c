package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. The "prod" environment writes JSON lines,
// anything else writes human readable console output.
func New(env, level string) *zerolog.Logger {
	return NewWithWriter(env, level, os.Stderr)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(env, level string, w io.Writer) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := w
	if !strings.EqualFold(strings.TrimSpace(env), "prod") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}

	l := zerolog.New(out).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Str("service", "flowup-web").
		Logger()

	return &l
}

func parseLevel(lvl string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// MaskEmail keeps the first two characters and the domain, e.g. "ad***@x.com".
func MaskEmail(email string) string {
	if len(email) < 3 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at < 2 {
		return email[:2] + "***"
	}
	return email[:2] + "***" + email[at:]
}
