// Package diag defines the diagnostics sink the echo operations report into.
package diag

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxLineLength caps a rendered diagnostic line.
const MaxLineLength = 256

// Step names a point in a socket operation's lifecycle.
type Step string

const (
	StepCreate     Step = "create"
	StepBind       Step = "bind"
	StepPort       Step = "port"
	StepListen     Step = "listen"
	StepAccept     Step = "accept"
	StepConnect    Step = "connect"
	StepReceive    Step = "receive"
	StepSend       Step = "send"
	StepDisconnect Step = "disconnect"
	StepClose      Step = "close"
	StepError      Step = "error"
)

// Event is one diagnostic record.
type Event struct {
	Session string
	Step    Step
	Message string
	Peer    string // host:port of the remote side, if any
	Port    int    // local port, if known
	Bytes   int
}

// Sink receives events. Implementations are supplied by the caller.
type Sink interface {
	Log(ev Event)
}

// Func adapts a function to Sink.
type Func func(Event)

func (f Func) Log(ev Event) {
	if f != nil {
		f(ev)
	}
}

// Nop discards everything.
var Nop Sink = Func(nil)

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop
	}
	return s
}

type tee []Sink

func (t tee) Log(ev Event) {
	for _, s := range t {
		s.Log(ev)
	}
}

// Tee fans events out to every non-nil sink.
func Tee(sinks ...Sink) Sink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

type session struct {
	id   string
	next Sink
}

func (s session) Log(ev Event) {
	if ev.Session == "" {
		ev.Session = s.id
	}
	s.next.Log(ev)
}

// WithSession stamps id on every event that has none.
func WithSession(s Sink, id string) Sink {
	return session{id: id, next: OrNop(s)}
}

// Line renders ev as a single line of at most MaxLineLength bytes.
func Line(ev Event) string {
	var b strings.Builder
	if ev.Session != "" {
		b.WriteString("[")
		b.WriteString(shortSession(ev.Session))
		b.WriteString("] ")
	}
	b.WriteString(string(ev.Step))
	b.WriteString(": ")
	b.WriteString(ev.Message)
	return clip(singleLine(b.String()), MaxLineLength)
}

// Printable renders payload bytes for a log message: printable ASCII is kept,
// everything else is escaped.
func Printable(p []byte) string {
	q := strconv.QuoteToASCII(string(p))
	return q[1 : len(q)-1]
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func singleLine(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, s)
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
