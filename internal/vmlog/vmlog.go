// Package vmlog wraps zerolog the way the teacher wires its own
// diagnostics: a Default constructor, and a Logger type callers thread
// through Options; there is no package-level global logger.
package vmlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the engine's structured diagnostics sink.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger writing to w (os.Stderr if nil) at level.
func New(w io.Writer, level zerolog.Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return Logger{zl: zl}
}

// Default returns an info-level logger writing to stderr.
func Default() Logger {
	return New(os.Stderr, zerolog.InfoLevel)
}

func (l Logger) Dispatch(marker int64, effectType string) {
	l.zl.Debug().Int64("marker", marker).Str("effect", effectType).Msg("dispatch")
}

func (l Logger) HostCall(kind string) {
	l.zl.Debug().Str("kind", kind).Msg("host call")
}

func (l Logger) Error(err error) {
	l.zl.Error().Err(err).Msg("run failed")
}

func (l Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}
