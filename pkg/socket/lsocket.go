package socket

import (
	"fmt"

	"golang.org/x/sys/unix"

	"IP-Echo/pkg/diag"
	"IP-Echo/pkg/sockerr"
)

// DefaultBacklog is the number of pending connections a listener queues.
const DefaultBacklog = 4

// Listen marks a bound stream socket as passive.
func (h *Handle) Listen(backlog int) error {
	if err := h.check(sockerr.KindListen); err != nil {
		return err
	}
	h.sink.Log(diag.Event{
		Step:    diag.StepListen,
		Message: fmt.Sprintf("Listening on socket with a backlog of %d pending connections.", backlog),
		Port:    h.localPort,
	})
	if err := unix.Listen(h.fd, backlog); err != nil {
		return h.tr.Translate(sockerr.KindListen, err)
	}
	h.state = Listening
	return nil
}

// Accept blocks until a peer connects and returns a handle the caller owns.
// A failure leaves the listener open.
func (h *Handle) Accept() (*Handle, Endpoint, error) {
	if err := h.check(sockerr.KindAccept); err != nil {
		return nil, Endpoint{}, err
	}
	h.sink.Log(diag.Event{Step: diag.StepAccept, Message: "Waiting for a client connection...", Port: h.localPort})

	var (
		nfd int
		sa  unix.Sockaddr
	)
	err := retry(func() (err error) {
		nfd, sa, err = unix.Accept(h.fd)
		return err
	})
	if err != nil {
		return nil, Endpoint{}, h.tr.Translate(sockerr.KindAccept, err)
	}
	unix.CloseOnExec(nfd)

	peer := endpointOf(sa)
	h.sink.Log(diag.Event{
		Step:    diag.StepAccept,
		Message: fmt.Sprintf("Client connection from %s", peer),
		Peer:    peer.String(),
	})
	return &Handle{
		fd:        nfd,
		kind:      Stream,
		state:     Connected,
		localPort: h.localPort,
		sink:      h.sink,
		tr:        h.tr,
	}, peer, nil
}
