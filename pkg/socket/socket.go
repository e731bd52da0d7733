// Package socket wraps kernel IPv4 sockets in exclusively owned handles.
//
// A Handle moves Created -> Bound -> (Listening | Connected) -> Closed and must
// be closed exactly once by the operation that created it. Every blocking call
// runs on the caller's goroutine; nothing here spawns work of its own.
package socket

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"IP-Echo/pkg/diag"
	"IP-Echo/pkg/sockerr"
)

// Kind selects the transport.
type Kind int

const (
	Stream Kind = iota
	Datagram
)

func (k Kind) String() string {
	switch k {
	case Stream:
		return "TCP"
	case Datagram:
		return "UDP"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) sockType() int {
	if k == Datagram {
		return unix.SOCK_DGRAM
	}
	return unix.SOCK_STREAM
}

type State int

const (
	Created State = iota
	Bound
	Listening
	Connected
	Closed
)

var stateNames = [...]string{"CREATED", "BOUND", "LISTENING", "CONNECTED", "CLOSED"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrAlreadyClosed is returned by a second Close.
var ErrAlreadyClosed = errors.New("socket is already closed")

// Handle is one kernel socket. It is not safe for concurrent use.
type Handle struct {
	fd        int
	kind      Kind
	state     State
	localPort int
	sink      diag.Sink
	tr        *sockerr.Translator
}

// Create opens a new IPv4 socket of the given kind (SocketFactory).
func Create(sink diag.Sink, kind Kind) (*Handle, error) {
	sink = diag.OrNop(sink)
	sink.Log(diag.Event{
		Step:    diag.StepCreate,
		Message: fmt.Sprintf("Constructing a new %s socket...", kind),
	})

	tr := sockerr.NewTranslator()
	fd, err := unix.Socket(unix.AF_INET, kind.sockType(), 0)
	if err != nil {
		return nil, tr.Translate(sockerr.KindSocketCreation, err)
	}
	unix.CloseOnExec(fd)

	return &Handle{
		fd:    fd,
		kind:  kind,
		state: Created,
		sink:  sink,
		tr:    tr,
	}, nil
}

func (h *Handle) Kind() Kind   { return h.kind }
func (h *Handle) State() State { return h.state }

// LocalPort is the port passed to Bind, or the one found by BoundPort.
func (h *Handle) LocalPort() int { return h.localPort }

// Close releases the socket. Only the first call does anything; later calls
// return ErrAlreadyClosed.
func (h *Handle) Close() error {
	if h.state == Closed {
		return ErrAlreadyClosed
	}
	h.state = Closed
	err := unix.Close(h.fd)
	h.sink.Log(diag.Event{
		Step:    diag.StepClose,
		Message: fmt.Sprintf("Closed the %s socket.", h.kind),
		Port:    h.localPort,
	})
	if err != nil {
		return errors.Wrapf(err, "close %s socket", h.kind)
	}
	return nil
}

// Bind attaches the socket to port on every local IPv4 address. Port 0 asks
// the kernel for any free port; call BoundPort afterwards to learn it.
func (h *Handle) Bind(port int) error {
	if err := h.check(sockerr.KindBind); err != nil {
		return err
	}
	h.sink.Log(diag.Event{
		Step:    diag.StepBind,
		Message: fmt.Sprintf("Binding to port %d.", port),
		Port:    port,
	})
	if port < 0 || port > 65535 {
		return h.tr.Errno(sockerr.KindBind, unix.EINVAL)
	}
	sa := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(h.fd, sa); err != nil {
		return h.tr.Translate(sockerr.KindBind, err)
	}
	h.state = Bound
	h.localPort = port
	return nil
}

// BoundPort asks the kernel which port the socket is bound to.
func (h *Handle) BoundPort() (int, error) {
	if err := h.check(sockerr.KindAddressQuery); err != nil {
		return 0, err
	}
	sa, err := unix.Getsockname(h.fd)
	if err != nil {
		return 0, h.tr.Translate(sockerr.KindAddressQuery, err)
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, h.tr.Errno(sockerr.KindAddressQuery, unix.EAFNOSUPPORT)
	}
	h.localPort = in4.Port
	h.sink.Log(diag.Event{
		Step:    diag.StepPort,
		Message: fmt.Sprintf("Binding to the random port %d.", in4.Port),
		Port:    in4.Port,
	})
	return in4.Port, nil
}

// check rejects calls on a closed handle with EBADF.
func (h *Handle) check(kind sockerr.Kind) error {
	if h.state == Closed {
		return h.tr.Errno(kind, unix.EBADF)
	}
	return nil
}

// retry reissues fn while the kernel reports an interrupted call.
func retry(fn func() error) error {
	for {
		err := fn()
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
