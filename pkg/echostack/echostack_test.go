package echostack

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"IP-Echo/pkg/diag"
	"IP-Echo/pkg/socket"
	"IP-Echo/pkg/sockerr"
)

// events is a sink that can be read while a server goroutine writes to it.
type events struct {
	mu  sync.Mutex
	all []diag.Event
}

func (e *events) Log(ev diag.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, ev)
}

func (e *events) count(step diag.Step, messagePrefix string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.all {
		if ev.Step == step && strings.HasPrefix(ev.Message, messagePrefix) {
			n++
		}
	}
	return n
}

func (e *events) sessions() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := map[string]bool{}
	for _, ev := range e.all {
		out[ev.Session] = true
	}
	return out
}

type runningServer struct {
	wg   conc.WaitGroup
	err  error
	port int
	log  *events
}

func (s *runningServer) wait(t *testing.T) error {
	t.Helper()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not finish")
	}
	return s.err
}

func start(t *testing.T, kind socket.Kind) *runningServer {
	t.Helper()
	srv := &runningServer{log: &events{}}
	readyStep := diag.StepAccept
	if kind == socket.Datagram {
		readyStep = diag.StepPort
	}
	ready := make(chan int, 1)
	sink := diag.Tee(srv.log, diag.Func(func(ev diag.Event) {
		if ev.Step == readyStep && ev.Port != 0 {
			select {
			case ready <- ev.Port:
			default:
			}
		}
	}))
	srv.wg.Go(func() {
		if kind == socket.Stream {
			srv.err = StartStreamServer(sink, 0)
		} else {
			srv.err = StartDatagramServer(sink, 0)
		}
	})
	select {
	case srv.port = <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}
	require.GreaterOrEqual(t, srv.port, 1)
	require.LessOrEqual(t, srv.port, 65535)
	return srv
}

func dial(t *testing.T, port int) *socket.Handle {
	t.Helper()
	dst, err := socket.ParseEndpoint("127.0.0.1", port)
	require.NoError(t, err)
	h, err := socket.Create(diag.Nop, socket.Stream)
	require.NoError(t, err)
	require.NoError(t, h.Connect(dst))
	return h
}

// readExactly receives until n bytes have arrived.
func readExactly(t *testing.T, h *socket.Handle, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	buf := make([]byte, 256)
	for len(out) < n {
		k, err := h.Receive(buf[:n-len(out)])
		require.NoError(t, err)
		require.NotZero(t, k, "peer closed early")
		out = append(out, buf[:k]...)
	}
	return out
}

func TestStreamEchoHello(t *testing.T) {
	srv := start(t, socket.Stream)

	var client events
	reply, err := StartStreamClient(&client, "127.0.0.1", srv.port, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), reply)

	require.NoError(t, srv.wait(t))
	require.Equal(t, 1, srv.log.count(diag.StepDisconnect, "Client disconnected."))
	require.Equal(t, 1, client.count(diag.StepReceive, "Received 5 bytes: hello"))
}

func TestStreamSingleByteThenClose(t *testing.T) {
	srv := start(t, socket.Stream)

	c := dial(t, srv.port)
	_, err := c.SendAll([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), readExactly(t, c, 1))
	require.NoError(t, c.Close())

	require.NoError(t, srv.wait(t))
	require.Zero(t, srv.log.count(diag.StepError, ""))
}

func TestStreamSequentialExchanges(t *testing.T) {
	srv := start(t, socket.Stream)
	c := dial(t, srv.port)

	messages := [][]byte{
		[]byte("first"),
		[]byte("x"),
		bytes.Repeat([]byte("z"), StreamPayloadLimit),
		{0x00, 0xff, 0x10, 0x0a},
	}
	for _, m := range messages {
		_, err := c.SendAll(m)
		require.NoError(t, err)
		require.Equal(t, m, readExactly(t, c, len(m)))
	}
	require.NoError(t, c.Close())
	require.NoError(t, srv.wait(t))
}

func TestStreamReceiveIsCappedAt79Bytes(t *testing.T) {
	srv := start(t, socket.Stream)
	c := dial(t, srv.port)

	msg := bytes.Repeat([]byte("q"), 200)
	_, err := c.SendAll(msg)
	require.NoError(t, err)
	require.Equal(t, msg, readExactly(t, c, len(msg)))
	require.NoError(t, c.Close())
	require.NoError(t, srv.wait(t))

	srv.log.mu.Lock()
	defer srv.log.mu.Unlock()
	for _, ev := range srv.log.all {
		if ev.Step == diag.StepReceive && ev.Bytes > 0 {
			require.LessOrEqual(t, ev.Bytes, StreamPayloadLimit)
		}
	}
}

func TestStreamClientSendsWholeMessage(t *testing.T) {
	ln, err := socket.Create(diag.Nop, socket.Stream)
	require.NoError(t, err)
	defer ln.Close()
	require.NoError(t, ln.Bind(0))
	port, err := ln.BoundPort()
	require.NoError(t, err)
	require.NoError(t, ln.Listen(socket.DefaultBacklog))

	msg := bytes.Repeat([]byte("0123456789"), 100)
	var (
		wg  conc.WaitGroup
		got []byte
	)
	wg.Go(func() {
		peer, _, err := ln.Accept()
		if err != nil {
			return
		}
		defer peer.Close()
		buf := make([]byte, 128)
		for len(got) < len(msg) {
			n, err := peer.Receive(buf)
			if err != nil || n == 0 {
				return
			}
			got = append(got, buf[:n]...)
		}
		_, _ = peer.SendAll([]byte("ok"))
	})

	reply, err := StartStreamClient(diag.Nop, "127.0.0.1", port, msg)
	wg.Wait()
	require.NoError(t, err)
	require.Equal(t, msg, got)
	require.Equal(t, []byte("ok"), reply)
}

func TestStreamClientServerClosesWithoutReply(t *testing.T) {
	ln, err := socket.Create(diag.Nop, socket.Stream)
	require.NoError(t, err)
	defer ln.Close()
	require.NoError(t, ln.Bind(0))
	port, err := ln.BoundPort()
	require.NoError(t, err)
	require.NoError(t, ln.Listen(socket.DefaultBacklog))

	var wg conc.WaitGroup
	wg.Go(func() {
		peer, _, err := ln.Accept()
		if err != nil {
			return
		}
		buf := make([]byte, 8)
		_, _ = peer.Receive(buf)
		_ = peer.Close()
	})

	var log events
	reply, err := StartStreamClient(&log, "127.0.0.1", port, []byte("hey"))
	wg.Wait()
	require.NoError(t, err)
	require.Empty(t, reply)
	require.Equal(t, 1, log.count(diag.StepDisconnect, "Server disconnected."))
}

func TestDatagramEchoPing(t *testing.T) {
	srv := start(t, socket.Datagram)

	reply, err := StartDatagramClient(diag.Nop, "127.0.0.1", srv.port, []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, []byte("ping"), reply)
	require.NoError(t, srv.wait(t))
	require.Equal(t, 1, srv.log.count(diag.StepReceive, "Received 4 bytes: ping"))
}

func TestDatagramEmptyMessageIsEchoed(t *testing.T) {
	srv := start(t, socket.Datagram)

	reply, err := StartDatagramClient(diag.Nop, "127.0.0.1", srv.port, []byte{})
	require.NoError(t, err)
	require.Empty(t, reply)
	require.NoError(t, srv.wait(t))
	require.Equal(t, 1, srv.log.count(diag.StepReceive, "Received 0 bytes: "))
	require.Equal(t, 1, srv.log.count(diag.StepSend, "Sent 0 bytes: "))
}

func TestDatagramFullCapacityAndTruncation(t *testing.T) {
	full := bytes.Repeat([]byte("f"), BufferCapacity)
	srv := start(t, socket.Datagram)
	reply, err := StartDatagramClient(diag.Nop, "127.0.0.1", srv.port, full)
	require.NoError(t, err)
	require.Equal(t, full, reply)
	require.NoError(t, srv.wait(t))

	long := bytes.Repeat([]byte("L"), 120)
	srv = start(t, socket.Datagram)
	reply, err = StartDatagramClient(diag.Nop, "127.0.0.1", srv.port, long)
	require.NoError(t, err)
	require.Equal(t, long[:BufferCapacity], reply)
	require.NoError(t, srv.wait(t))
}

func TestDatagramServerAnswersOnlyOnce(t *testing.T) {
	srv := start(t, socket.Datagram)

	_, err := StartDatagramClient(diag.Nop, "127.0.0.1", srv.port, []byte("one"))
	require.NoError(t, err)
	require.NoError(t, srv.wait(t))

	// the port is released, so nothing is listening there any more
	h, err := socket.Create(diag.Nop, socket.Datagram)
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, h.Bind(srv.port))
}

func TestMalformedAddressFailsBeforeSocket(t *testing.T) {
	for _, addr := range []string{"not-an-ip", "300.1.1.1", "", "fe80::1"} {
		var log events
		_, err := StartStreamClient(&log, addr, 7, []byte("x"))
		require.True(t, sockerr.Is(err, sockerr.KindAddressParse), addr)
		require.Zero(t, log.count(diag.StepCreate, ""))

		_, err = StartDatagramClient(&log, addr, 7, []byte("x"))
		require.True(t, sockerr.Is(err, sockerr.KindAddressParse), addr)
		require.Zero(t, log.count(diag.StepCreate, ""))
		require.Equal(t, 2, log.count(diag.StepError, "address parse error"))
	}
}

func TestHandlesClosedExactlyOnce(t *testing.T) {
	srv := start(t, socket.Stream)
	var client events
	_, err := StartStreamClient(&client, "127.0.0.1", srv.port, []byte("count me"))
	require.NoError(t, err)
	require.NoError(t, srv.wait(t))

	// listener + accepted peer on the server, one socket on the client
	require.Equal(t, 1, srv.log.count(diag.StepCreate, ""))
	require.Equal(t, 1, srv.log.count(diag.StepAccept, "Client connection from"))
	require.Equal(t, 2, srv.log.count(diag.StepClose, ""))
	require.Equal(t, 1, client.count(diag.StepCreate, ""))
	require.Equal(t, 1, client.count(diag.StepClose, ""))
	require.Zero(t, srv.log.count(diag.StepError, ""))
	require.Len(t, srv.log.sessions(), 1)
}

func TestConnectRefusedReleasesHandle(t *testing.T) {
	spare, err := socket.Create(diag.Nop, socket.Stream)
	require.NoError(t, err)
	require.NoError(t, spare.Bind(0))
	port, err := spare.BoundPort()
	require.NoError(t, err)
	require.NoError(t, spare.Close())

	var log events
	_, err = StartStreamClient(&log, "127.0.0.1", port, []byte("x"))
	require.True(t, sockerr.Is(err, sockerr.KindConnect))
	require.Equal(t, unix.ECONNREFUSED, sockerr.CodeOf(err))
	require.Equal(t, 1, log.count(diag.StepCreate, ""))
	require.Equal(t, 1, log.count(diag.StepClose, ""))
	require.Equal(t, 1, log.count(diag.StepError, "connect error"))
}

func TestServerBindFailureReleasesHandle(t *testing.T) {
	busy, err := socket.Create(diag.Nop, socket.Stream)
	require.NoError(t, err)
	defer busy.Close()
	require.NoError(t, busy.Bind(0))
	port, err := busy.BoundPort()
	require.NoError(t, err)
	require.NoError(t, busy.Listen(1))

	var log events
	err = StartStreamServer(&log, port)
	require.True(t, sockerr.Is(err, sockerr.KindBind))
	require.Equal(t, 1, log.count(diag.StepClose, ""))

	var dlog events
	err = StartDatagramServer(&dlog, -1)
	require.True(t, sockerr.Is(err, sockerr.KindBind))
	require.Equal(t, unix.EINVAL, sockerr.CodeOf(err))
	require.Equal(t, 1, dlog.count(diag.StepClose, ""))
}

func TestExplicitPortSkipsDiscovery(t *testing.T) {
	spare, err := socket.Create(diag.Nop, socket.Datagram)
	require.NoError(t, err)
	require.NoError(t, spare.Bind(0))
	port, err := spare.BoundPort()
	require.NoError(t, err)
	require.NoError(t, spare.Close())

	log := &events{}
	bound := make(chan struct{})
	sink := diag.Tee(log, diag.Func(func(ev diag.Event) {
		if ev.Step == diag.StepReceive && ev.Message == "Receiving from the socket..." {
			close(bound)
		}
	}))
	var wg conc.WaitGroup
	var srvErr error
	wg.Go(func() { srvErr = StartDatagramServer(sink, port, WithSession("fixed")) })
	<-bound

	reply, err := StartDatagramClient(diag.Nop, "127.0.0.1", port, []byte("p"))
	wg.Wait()
	require.NoError(t, err)
	require.NoError(t, srvErr)
	require.Equal(t, []byte("p"), reply)
	require.Zero(t, log.count(diag.StepPort, ""))
	require.Equal(t, map[string]bool{"fixed": true}, log.sessions())
}

func TestLoopback(t *testing.T) {
	reply, err := RunStreamLoopback(diag.Nop, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), reply)

	reply, err = RunDatagramLoopback(diag.Nop, []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, []byte("ping"), reply)
}

func TestLoopbackSharesZerologWriter(t *testing.T) {
	var buf bytes.Buffer
	sink := diag.NewZerologWriter(&buf, "json", zerolog.DebugLevel)

	for i := 0; i < 20; i++ {
		reply, err := RunStreamLoopback(sink, []byte("hello"))
		require.NoError(t, err)
		require.Equal(t, []byte("hello"), reply)
	}
	reply, err := RunDatagramLoopback(sink, []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, []byte("ping"), reply)

	out := buf.String()
	require.Equal(t, 20, strings.Count(out, `"message":"Client disconnected."`))
	// once by the client, once by the server
	require.Equal(t, 2, strings.Count(out, `"message":"Sent 4 bytes: ping"`))
}

func TestLoopbackDatagramClientFailureUnblocksServer(t *testing.T) {
	// larger than any UDP datagram
	_, err := RunDatagramLoopback(diag.Nop, make([]byte, 70000))
	require.True(t, sockerr.Is(err, sockerr.KindSend))
}

func TestBuffer(t *testing.T) {
	var b Buffer
	require.Len(t, b.Stream(), StreamPayloadLimit)
	require.Len(t, b.Datagram(), BufferCapacity)

	copy(b.Datagram(), bytes.Repeat([]byte("k"), BufferCapacity))
	require.Equal(t, strings.Repeat("k", BufferCapacity), b.Render(BufferCapacity))
	require.Equal(t, strings.Repeat("k", BufferCapacity), b.Render(BufferCapacity+10))
	require.Len(t, b.Payload(BufferCapacity), BufferCapacity)
	require.Empty(t, b.Payload(-1))
	require.Equal(t, byte('k'), b.Datagram()[BufferCapacity-1])
}
