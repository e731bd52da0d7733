package diag

import (
	"io"

	"github.com/rs/zerolog"
)

// Zerolog writes events through a zerolog.Logger. Failures go out at error
// level, I/O steps at debug, everything else at info.
type Zerolog struct {
	log zerolog.Logger
}

// NewZerolog wraps an existing logger.
func NewZerolog(log zerolog.Logger) *Zerolog {
	return &Zerolog{log: log}
}

// NewZerologWriter builds a timestamped logger on w. format "json" writes raw
// JSON, anything else uses zerolog's console writer. Writes to w are
// serialized, so the sink may be shared by a server and a client goroutine.
func NewZerologWriter(w io.Writer, format string, level zerolog.Level) *Zerolog {
	out := zerolog.SyncWriter(w)
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}
	return NewZerolog(zerolog.New(out).Level(level).With().Timestamp().Logger())
}

func (z *Zerolog) Log(ev Event) {
	var e *zerolog.Event
	switch ev.Step {
	case StepError:
		e = z.log.Error()
	case StepReceive, StepSend, StepClose:
		e = z.log.Debug()
	default:
		e = z.log.Info()
	}
	if ev.Session != "" {
		e = e.Str("session", ev.Session)
	}
	e = e.Str("step", string(ev.Step))
	if ev.Peer != "" {
		e = e.Str("peer", ev.Peer)
	}
	if ev.Port != 0 {
		e = e.Int("port", ev.Port)
	}
	if ev.Bytes != 0 {
		e = e.Int("bytes", ev.Bytes)
	}
	e.Msg(clip(singleLine(ev.Message), MaxLineLength))
}
