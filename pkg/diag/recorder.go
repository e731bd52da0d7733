package diag

import (
	"strings"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// Recorder keeps the most recent rendered lines in a fixed-size ring. When a new
// line does not fit, whole lines are evicted from the front.
type Recorder struct {
	mu   sync.Mutex
	ring *ringbuffer.RingBuffer
	size int
}

// NewRecorder returns a Recorder holding up to size bytes of history.
func NewRecorder(size int) *Recorder {
	if size < MaxLineLength+1 {
		size = MaxLineLength + 1
	}
	return &Recorder{ring: ringbuffer.New(size), size: size}
}

func (r *Recorder) Log(ev Event) {
	line := Line(ev) + "\n"

	r.mu.Lock()
	defer r.mu.Unlock()
	for r.ring.Free() < len(line) {
		if !r.evictLocked() {
			r.ring.Reset()
			break
		}
	}
	_, _ = r.ring.Write([]byte(line))
}

// Lines returns the retained lines, oldest first.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := r.snapshotLocked()
	if len(data) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// Len reports the number of retained lines.
func (r *Recorder) Len() int {
	return len(r.Lines())
}

// Reset drops all history.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring.Reset()
}

// evictLocked drops the oldest line. It reports false when nothing was buffered.
func (r *Recorder) evictLocked() bool {
	if r.ring.IsEmpty() {
		return false
	}
	for {
		b, err := r.ring.ReadByte()
		if err != nil {
			return true
		}
		if b == '\n' {
			return true
		}
	}
}

// snapshotLocked drains the ring and writes the bytes back.
func (r *Recorder) snapshotLocked() []byte {
	n := r.ring.Length()
	if n == 0 {
		return nil
	}
	data := make([]byte, n)
	read, _ := r.ring.Read(data)
	data = data[:read]
	_, _ = r.ring.Write(data)
	return data
}
