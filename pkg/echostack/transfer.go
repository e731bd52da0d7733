package echostack

import (
	"fmt"

	"IP-Echo/pkg/diag"
	"IP-Echo/pkg/socket"
)

// echoStream sends every chunk read from peer straight back until the peer
// shuts down (nil) or a call fails (the typed error).
//
//	receiving --0 bytes--> disconnected
//	receiving --n bytes--> sending --ok--> receiving
//	any failure         -> failed
func echoStream(sink diag.Sink, peer *socket.Handle) error {
	var buf Buffer
	for {
		n, err := peer.Receive(buf.Stream())
		if err != nil {
			return err
		}
		if n == 0 {
			sink.Log(diag.Event{Step: diag.StepDisconnect, Message: "Client disconnected."})
			return nil
		}
		logReceived(sink, &buf, n, "")

		sent, err := peer.Send(buf.Payload(n))
		if err != nil {
			return err
		}
		if sent == 0 {
			sink.Log(diag.Event{Step: diag.StepDisconnect, Message: "Client disconnected."})
			return nil
		}
		logSent(sink, buf.Payload(sent), "")
	}
}

// echoDatagram answers exactly one datagram and returns.
func echoDatagram(sink diag.Sink, h *socket.Handle) error {
	var buf Buffer
	n, from, err := h.ReceiveFrom(buf.Datagram())
	if err != nil {
		return err
	}
	logReceived(sink, &buf, n, from.String())

	sent, err := h.SendTo(buf.Payload(n), from)
	if err != nil {
		return err
	}
	if sent != n {
		sink.Log(diag.Event{
			Step:    diag.StepSend,
			Message: fmt.Sprintf("Short datagram: sent %d of %d bytes.", sent, n),
			Peer:    from.String(),
		})
	}
	logSent(sink, buf.Payload(sent), from.String())
	return nil
}
