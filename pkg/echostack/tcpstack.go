package echostack

import (
	"IP-Echo/pkg/diag"
	"IP-Echo/pkg/socket"
)

// StartStreamServer binds a TCP socket to port, accepts one client and echoes
// what it sends until the client shuts down. Port 0 picks a free port, which
// is reported to sink (step "port") before the socket listens.
func StartStreamServer(sink diag.Sink, port int, opts ...Option) (err error) {
	o := newOptions(opts)
	sink = o.sink(sink)
	defer func() { report(sink, err) }()

	ln, err := socket.Create(sink, socket.Stream)
	if err != nil {
		return err
	}
	defer release(sink, ln)

	if err := ln.Bind(port); err != nil {
		return err
	}
	if port == 0 {
		if _, err := ln.BoundPort(); err != nil {
			return err
		}
	}
	if err := ln.Listen(o.backlog); err != nil {
		return err
	}

	peer, _, err := ln.Accept()
	if err != nil {
		return err
	}
	defer release(sink, peer)

	return echoStream(sink, peer)
}

// StartStreamClient connects to address:port, sends message in full and
// returns whatever a single receive brings back. A malformed address fails
// before any socket is opened.
func StartStreamClient(sink diag.Sink, address string, port int, message []byte, opts ...Option) (reply []byte, err error) {
	o := newOptions(opts)
	sink = o.sink(sink)
	defer func() { report(sink, err) }()

	dst, err := socket.ParseEndpoint(address, port)
	if err != nil {
		return nil, err
	}

	h, err := socket.Create(sink, socket.Stream)
	if err != nil {
		return nil, err
	}
	defer release(sink, h)

	if err := h.Connect(dst); err != nil {
		return nil, err
	}

	if _, err := h.SendAll(message); err != nil {
		return nil, err
	}
	logSent(sink, message, dst.String())

	var buf Buffer
	n, err := h.Receive(buf.Stream())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		sink.Log(diag.Event{Step: diag.StepDisconnect, Message: "Server disconnected.", Peer: dst.String()})
		return []byte{}, nil
	}
	logReceived(sink, &buf, n, dst.String())
	return append([]byte(nil), buf.Payload(n)...), nil
}
