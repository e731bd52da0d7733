package echostack

import (
	"IP-Echo/pkg/diag"
	"IP-Echo/pkg/socket"
)

// StartDatagramServer binds a UDP socket to port, answers the first datagram
// it receives and returns. Port 0 picks a free port and reports it to sink.
func StartDatagramServer(sink diag.Sink, port int, opts ...Option) (err error) {
	o := newOptions(opts)
	sink = o.sink(sink)
	defer func() { report(sink, err) }()

	h, err := socket.Create(sink, socket.Datagram)
	if err != nil {
		return err
	}
	defer release(sink, h)

	if err := h.Bind(port); err != nil {
		return err
	}
	if port == 0 {
		if _, err := h.BoundPort(); err != nil {
			return err
		}
	}
	return echoDatagram(sink, h)
}

// StartDatagramClient sends message as one datagram to address:port and
// returns the single datagram received afterwards. The reply is not compared
// with the message.
func StartDatagramClient(sink diag.Sink, address string, port int, message []byte, opts ...Option) (reply []byte, err error) {
	o := newOptions(opts)
	sink = o.sink(sink)
	defer func() { report(sink, err) }()

	dst, err := socket.ParseEndpoint(address, port)
	if err != nil {
		return nil, err
	}

	h, err := socket.Create(sink, socket.Datagram)
	if err != nil {
		return nil, err
	}
	defer release(sink, h)

	n, err := h.SendTo(message, dst)
	if err != nil {
		return nil, err
	}
	logSent(sink, message[:n], dst.String())

	var buf Buffer
	n, from, err := h.ReceiveFrom(buf.Datagram())
	if err != nil {
		return nil, err
	}
	logReceived(sink, &buf, n, from.String())
	return append([]byte(nil), buf.Payload(n)...), nil
}
