package socket

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"IP-Echo/pkg/diag"
	"IP-Echo/pkg/sockerr"
)

// Connect opens a stream connection to dst.
func (h *Handle) Connect(dst Endpoint) error {
	if err := h.check(sockerr.KindConnect); err != nil {
		return err
	}
	h.sink.Log(diag.Event{
		Step:    diag.StepConnect,
		Message: fmt.Sprintf("Connecting to %s...", dst),
		Peer:    dst.String(),
	})

	interrupted := false
	err := retry(func() error {
		err := unix.Connect(h.fd, dst.sockaddr())
		switch {
		case errors.Is(err, unix.EINTR):
			interrupted = true
		case interrupted && errors.Is(err, unix.EISCONN):
			// the interrupted attempt completed in the background
			return nil
		case interrupted && errors.Is(err, unix.EALREADY):
			return unix.EINTR
		}
		return err
	})
	if err != nil {
		return h.tr.Translate(sockerr.KindConnect, err)
	}
	h.state = Connected
	h.sink.Log(diag.Event{Step: diag.StepConnect, Message: "Connected.", Peer: dst.String()})
	return nil
}

// Receive reads up to len(p) bytes from a connected socket. Zero bytes with a
// nil error means the peer shut down its side.
func (h *Handle) Receive(p []byte) (int, error) {
	if err := h.check(sockerr.KindReceive); err != nil {
		return 0, err
	}
	h.sink.Log(diag.Event{Step: diag.StepReceive, Message: "Receiving from the socket..."})

	var n int
	err := retry(func() (err error) {
		n, _, err = unix.Recvfrom(h.fd, p, 0)
		return err
	})
	if err != nil {
		return 0, h.tr.Translate(sockerr.KindReceive, err)
	}
	return n, nil
}

// Send writes p with a single send call and returns how much the kernel took.
func (h *Handle) Send(p []byte) (int, error) {
	if err := h.check(sockerr.KindSend); err != nil {
		return 0, err
	}
	h.sink.Log(diag.Event{Step: diag.StepSend, Message: "Sending to the socket..."})

	var n int
	err := retry(func() (err error) {
		n, err = unix.SendmsgN(h.fd, p, nil, nil, 0)
		return err
	})
	if err != nil {
		return 0, h.tr.Translate(sockerr.KindSend, err)
	}
	return n, nil
}

// SendAll sends p over a connected stream, issuing as many sends as the kernel
// needs. A send that moves nothing is reported as EPIPE.
func (h *Handle) SendAll(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := h.Send(p[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, h.tr.Errno(sockerr.KindSend, unix.EPIPE)
		}
		total += n
	}
	return total, nil
}

// ReceiveFrom reads one datagram into p and reports who sent it. Anything past
// len(p) is discarded by the kernel.
func (h *Handle) ReceiveFrom(p []byte) (int, Endpoint, error) {
	if err := h.check(sockerr.KindReceive); err != nil {
		return 0, Endpoint{}, err
	}
	h.sink.Log(diag.Event{Step: diag.StepReceive, Message: "Receiving from the socket..."})

	var (
		n  int
		sa unix.Sockaddr
	)
	err := retry(func() (err error) {
		n, sa, err = unix.Recvfrom(h.fd, p, 0)
		return err
	})
	if err != nil {
		return 0, Endpoint{}, h.tr.Translate(sockerr.KindReceive, err)
	}
	from := endpointOf(sa)
	h.sink.Log(diag.Event{
		Step:    diag.StepReceive,
		Message: fmt.Sprintf("Received from %s", from),
		Peer:    from.String(),
	})
	return n, from, nil
}

// SendTo sends p as one datagram to dst.
func (h *Handle) SendTo(p []byte, dst Endpoint) (int, error) {
	if err := h.check(sockerr.KindSend); err != nil {
		return 0, err
	}
	h.sink.Log(diag.Event{
		Step:    diag.StepSend,
		Message: fmt.Sprintf("Sending to %s", dst),
		Peer:    dst.String(),
	})

	var n int
	err := retry(func() (err error) {
		n, err = unix.SendmsgN(h.fd, p, nil, dst.sockaddr(), 0)
		return err
	})
	if err != nil {
		return 0, h.tr.Translate(sockerr.KindSend, err)
	}
	return n, nil
}
