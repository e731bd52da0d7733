package echostack

import "IP-Echo/pkg/diag"

const (
	// BufferCapacity is the size of every transfer buffer.
	BufferCapacity = 80
	// StreamPayloadLimit is the most a single stream receive may return. The
	// last byte is held back for the rendering terminator.
	StreamPayloadLimit = BufferCapacity - 1
)

// Buffer is the fixed transfer buffer used for one exchange.
type Buffer struct {
	data [BufferCapacity]byte
}

// Stream is the window a stream receive reads into.
func (b *Buffer) Stream() []byte { return b.data[:StreamPayloadLimit] }

// Datagram is the window a datagram receive reads into: the whole buffer.
func (b *Buffer) Datagram() []byte { return b.data[:] }

// Payload returns the first n received bytes.
func (b *Buffer) Payload(n int) []byte { return b.data[:clamp(n)] }

// Render formats the first n bytes for a log line. It works on a terminated
// copy so a full datagram never needs a byte past the buffer.
func (b *Buffer) Render(n int) string {
	var scratch [BufferCapacity + 1]byte
	n = clamp(n)
	copy(scratch[:], b.data[:n])
	scratch[n] = 0
	return diag.Printable(scratch[:n])
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > BufferCapacity {
		return BufferCapacity
	}
	return n
}
