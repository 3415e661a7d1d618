package consolelog

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"golang.design/x/chann"
)

var ErrClosed = errors.New("async writer is closed")

// AsyncWriter hands writes off to a single goroutine, so that slow terminals don't hold up the goroutines that log.
// Writes are never dropped and keep their order; the queue grows as needed.
type AsyncWriter struct {
	w     io.Writer
	queue *chann.Chann[[]byte]
	done  chan struct{}

	// mu guards closed, and keeps Close from closing the queue during a Write
	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func NewAsyncWriter(w io.Writer) *AsyncWriter {
	a := &AsyncWriter{
		w:     w,
		queue: chann.New[[]byte](),
		done:  make(chan struct{}),
	}
	go a.drain()
	return a
}

func (a *AsyncWriter) drain() {
	for p := range a.queue.Out() {
		if _, err := a.w.Write(p); err != nil {
			a.errMu.Lock()
			if a.err == nil {
				a.err = err
			}
			a.errMu.Unlock()
		}
	}
	close(a.done)
}

// Write queues a copy of p. Errors of the underlying writer are reported by Close.
func (a *AsyncWriter) Write(p []byte) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return 0, ErrClosed
	}

	a.queue.In() <- bytes.Clone(p)
	return len(p), nil
}

// Pending returns the number of writes that haven't reached the underlying writer yet.
func (a *AsyncWriter) Pending() int {
	return a.queue.Len()
}

// Close waits until everything queued so far has been written, and returns the first error the underlying writer
// reported.
func (a *AsyncWriter) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		a.queue.Close()
	}
	a.mu.Unlock()

	<-a.done

	a.errMu.Lock()
	defer a.errMu.Unlock()
	return a.err
}
