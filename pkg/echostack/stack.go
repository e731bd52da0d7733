// Package echostack runs the echo exchanges on top of pkg/socket: the stream
// server loop, the single datagram round trip, and the two client roles.
//
// Every entry point is synchronous. It owns the handles it opens and closes
// each of them exactly once before returning, whatever the outcome.
package echostack

import (
	"fmt"

	"github.com/google/uuid"

	"IP-Echo/pkg/diag"
	"IP-Echo/pkg/socket"
)

type options struct {
	backlog int
	session string
}

// Option tunes an entry point.
type Option func(*options)

// WithBacklog sets the listen backlog of the stream server.
func WithBacklog(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.backlog = n
		}
	}
}

// WithSession fixes the session id stamped on events instead of a random one.
func WithSession(id string) Option {
	return func(o *options) {
		o.session = id
	}
}

func newOptions(opts []Option) options {
	o := options{backlog: socket.DefaultBacklog}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.session == "" {
		o.session = uuid.NewString()
	}
	return o
}

func (o options) sink(s diag.Sink) diag.Sink {
	return diag.WithSession(s, o.session)
}

// release closes h. A close failure is logged and never replaces the result
// of the operation.
func release(sink diag.Sink, h *socket.Handle) {
	if err := h.Close(); err != nil {
		sink.Log(diag.Event{Step: diag.StepError, Message: err.Error()})
	}
}

// report logs the error an operation ends with.
func report(sink diag.Sink, err error) {
	if err != nil {
		sink.Log(diag.Event{Step: diag.StepError, Message: err.Error()})
	}
}

func logReceived(sink diag.Sink, buf *Buffer, n int, from string) {
	sink.Log(diag.Event{
		Step:    diag.StepReceive,
		Message: fmt.Sprintf("Received %d bytes: %s", n, buf.Render(n)),
		Peer:    from,
		Bytes:   n,
	})
}

func logSent(sink diag.Sink, p []byte, to string) {
	sink.Log(diag.Event{
		Step:    diag.StepSend,
		Message: fmt.Sprintf("Sent %d bytes: %s", len(p), diag.Printable(p)),
		Peer:    to,
		Bytes:   len(p),
	})
}
