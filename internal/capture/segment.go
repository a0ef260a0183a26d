package capture

import (
	"sync"
	"time"

	"github.com/leonardotrapani/hyprscribe/internal/recording"
	"github.com/leonardotrapani/hyprscribe/internal/wav"
)

// Segment is one window of captured audio. Once taken from the session buffer
// it belongs to the flush cycle that took it.
type Segment struct {
	ID        string
	Format    wav.Format
	StartedAt time.Time
	Chunks    [][]byte
}

func (s Segment) Empty() bool {
	return s.Len() == 0
}

// Len is the PCM payload size in bytes.
func (s Segment) Len() int {
	n := 0
	for _, c := range s.Chunks {
		n += len(c)
	}
	return n
}

// PCM concatenates the chunks in arrival order.
func (s Segment) PCM() []byte {
	out := make([]byte, 0, s.Len())
	for _, c := range s.Chunks {
		out = append(out, c...)
	}
	return out
}

func (s Segment) Duration() time.Duration {
	rate := s.Format.ByteRate()
	if rate == 0 {
		return 0
	}
	return time.Duration(int64(s.Len()) * int64(time.Second) / int64(rate))
}

// buffer accumulates chunks between flushes.
type buffer struct {
	mu        sync.Mutex
	chunks    [][]byte
	startedAt time.Time
}

func (b *buffer) append(frame recording.AudioFrame) {
	if len(frame.Data) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) == 0 {
		b.startedAt = frame.Timestamp
	}
	b.chunks = append(b.chunks, frame.Data)
}

// take returns everything buffered so far and resets the buffer in the same
// critical section, so a chunk lands in exactly one segment.
func (b *buffer) take() ([][]byte, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	chunks, startedAt := b.chunks, b.startedAt
	b.chunks = nil
	b.startedAt = time.Time{}
	return chunks, startedAt
}

func (b *buffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}
