package echostack

import (
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"

	"IP-Echo/pkg/diag"
	"IP-Echo/pkg/socket"
)

const loopbackAddress = "127.0.0.1"

// RunStreamLoopback starts a stream server on a free port, runs the stream
// client against it with message and returns the echoed reply.
func RunStreamLoopback(sink diag.Sink, message []byte) ([]byte, error) {
	return runLoopback(sink, socket.Stream, message)
}

// RunDatagramLoopback is RunStreamLoopback over UDP.
func RunDatagramLoopback(sink diag.Sink, message []byte) ([]byte, error) {
	return runLoopback(sink, socket.Datagram, message)
}

func runLoopback(sink diag.Sink, kind socket.Kind, message []byte) ([]byte, error) {
	sink = diag.OrNop(sink)

	// A stream server is reachable once it waits in accept, a datagram
	// server once its port is known.
	readyStep := diag.StepAccept
	if kind == socket.Datagram {
		readyStep = diag.StepPort
	}
	ready := make(chan int, 1)
	watch := diag.Func(func(ev diag.Event) {
		if ev.Step == readyStep && ev.Port != 0 {
			select {
			case ready <- ev.Port:
			default:
			}
		}
	})

	var (
		wg        conc.WaitGroup
		serverErr error
	)
	done := make(chan struct{})
	wg.Go(func() {
		defer close(done)
		if kind == socket.Stream {
			serverErr = StartStreamServer(diag.Tee(sink, watch), 0)
		} else {
			serverErr = StartDatagramServer(diag.Tee(sink, watch), 0)
		}
	})

	var port int
	select {
	case port = <-ready:
	case <-done:
		wg.Wait()
		if serverErr == nil {
			serverErr = errors.New("server exited")
		}
		return nil, errors.Wrap(serverErr, "loopback server stopped before it was ready")
	}

	var (
		reply     []byte
		clientErr error
	)
	if kind == socket.Stream {
		reply, clientErr = StartStreamClient(sink, loopbackAddress, port, message)
	} else {
		reply, clientErr = StartDatagramClient(sink, loopbackAddress, port, message)
	}
	if clientErr != nil {
		unblock(kind, port)
	}
	wg.Wait()

	if clientErr != nil {
		return nil, clientErr
	}
	if serverErr != nil {
		return reply, serverErr
	}
	return reply, nil
}

// unblock wakes a server still waiting for its peer after the client failed:
// a connection that closes at once for streams, an empty datagram otherwise.
func unblock(kind socket.Kind, port int) {
	dst, err := socket.ParseEndpoint(loopbackAddress, port)
	if err != nil {
		return
	}
	h, err := socket.Create(diag.Nop, kind)
	if err != nil {
		return
	}
	defer h.Close()
	if kind == socket.Stream {
		_ = h.Connect(dst)
		return
	}
	_, _ = h.SendTo(nil, dst)
}
