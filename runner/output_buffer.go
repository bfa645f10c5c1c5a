package runner

import (
	"sync"
)

const defaultOutputTailBytes = 5 * 1024 * 1024 // 5MB kept in memory per child

// tailBuffer retains the last limit bytes written to it. A child writes both
// stdout and stderr here, so the outcome line written last always survives.
type tailBuffer struct {
	limit int

	mu    sync.Mutex
	total int64
	tail  []byte
}

func newTailBuffer(limit int) *tailBuffer {
	if limit <= 0 {
		limit = defaultOutputTailBytes
	}
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	if len(p) >= b.limit {
		b.tail = append(b.tail[:0], p[len(p)-b.limit:]...)
		return len(p), nil
	}
	if excess := len(b.tail) + len(p) - b.limit; excess > 0 {
		b.tail = b.tail[:copy(b.tail, b.tail[excess:])]
	}
	b.tail = append(b.tail, p...)
	return len(p), nil
}

// Bytes returns everything retained.
func (b *tailBuffer) Bytes() []byte {
	return b.Tail(-1)
}

// Tail returns at most n of the most recent bytes; n < 0 means all of them.
func (b *tailBuffer) Tail(n int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.tail
	if n >= 0 && len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return append([]byte(nil), kept...)
}

// TotalBytes counts every byte written, retained or not.
func (b *tailBuffer) TotalBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}
