// Package telemetry adapts OpenTelemetry spans to the task renderer.
package telemetry

import (
	"bytes"
	"sync"
	"time"
)

const (
	// DefaultSizeLimit is the buffered byte count that forces a flush.
	DefaultSizeLimit = 4096
	// DefaultTimeLimit is how long a partial line may wait before it is flushed.
	DefaultTimeLimit = 50 * time.Millisecond
)

// LineBatcher buffers task output and delivers it in whole lines.
// A partial line is delivered once it is older than the time limit or the buffer exceeds
// the size limit. It is safe for concurrent use.
type LineBatcher struct {
	sizeLimit int
	timeLimit time.Duration
	onFlush   func([]byte)

	mu     sync.Mutex
	buffer bytes.Buffer
	timer  *time.Timer
	closed bool
}

// NewLineBatcher returns a LineBatcher calling onFlush with each delivered chunk.
// Non-positive limits select the defaults.
func NewLineBatcher(sizeLimit int, timeLimit time.Duration, onFlush func([]byte)) *LineBatcher {
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	return &LineBatcher{sizeLimit: sizeLimit, timeLimit: timeLimit, onFlush: onFlush}
}

// Write buffers p and delivers every complete line.
func (b *LineBatcher) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return len(p), nil
	}
	b.buffer.Write(p)

	if b.buffer.Len() >= b.sizeLimit {
		b.deliverLocked(b.buffer.Len())
		return len(p), nil
	}

	if i := bytes.LastIndexByte(b.buffer.Bytes(), '\n'); i >= 0 {
		b.deliverLocked(i + 1)
	}
	if b.buffer.Len() > 0 && b.timer == nil {
		b.timer = time.AfterFunc(b.timeLimit, b.Flush)
	}
	return len(p), nil
}

// Flush delivers everything buffered, including a partial line.
func (b *LineBatcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliverLocked(b.buffer.Len())
}

// Close flushes and stops accepting output.
func (b *LineBatcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.deliverLocked(b.buffer.Len())
	b.closed = true
	return nil
}

// deliverLocked hands the first n buffered bytes to onFlush. Callers hold b.mu.
func (b *LineBatcher) deliverLocked(n int) {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if n == 0 {
		return
	}

	data := make([]byte, n)
	copy(data, b.buffer.Next(n))
	if b.onFlush != nil {
		b.onFlush(data)
	}
}
