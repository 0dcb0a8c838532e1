// Package device models execution spaces: queues of asynchronous work bound
// to one block, and the fence that makes results of that work visible to
// the host.
package device

import (
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is reported when work is launched on a closed space.
var ErrClosed = errors.New("execution space closed")

// Space runs kernels for one block.
type Space interface {
	// Launch queues fn. Launch does not wait for fn to run; errors surface
	// on the next Fence.
	Launch(fn func() error)
	// Fence blocks until all launched work has finished and returns the
	// first error any of it produced.
	Fence() error
	Close()
}

// CopyScalar fences the space and then reads one value into host memory.
func CopyScalar(s Space, read func() float64) (float64, error) {
	if err := s.Fence(); err != nil {
		return 0, fmt.Errorf("device fence: %w", err)
	}
	return read(), nil
}

// Stream is an asynchronous in-order execution queue backed by a goroutine.
type Stream struct {
	queue   chan func() error
	pending sync.WaitGroup

	mu     sync.Mutex
	err    error
	closed bool
}

// NewStream starts a stream. depth bounds the number of queued kernels
// before Launch blocks.
func NewStream(depth int) *Stream {
	if depth < 1 {
		depth = 1
	}
	s := &Stream{queue: make(chan func() error, depth)}
	go s.loop()
	return s
}

func (s *Stream) loop() {
	for fn := range s.queue {
		if err := fn(); err != nil {
			s.record(err)
		}
		s.pending.Done()
	}
}

func (s *Stream) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Launch implements Space.
func (s *Stream) Launch(fn func() error) {
	s.mu.Lock()
	if s.closed {
		if s.err == nil {
			s.err = ErrClosed
		}
		s.mu.Unlock()
		return
	}
	s.pending.Add(1)
	s.mu.Unlock()
	s.queue <- fn
}

// Fence implements Space.
func (s *Stream) Fence() error {
	s.pending.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close drains the queue and stops the stream goroutine.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.pending.Wait()
	close(s.queue)
}

// Serial runs kernels inline on the calling goroutine. Its fence only
// reports errors.
type Serial struct {
	mu  sync.Mutex
	err error
}

// Launch implements Space.
func (s *Serial) Launch(fn func() error) {
	if err := fn(); err != nil {
		s.mu.Lock()
		if s.err == nil {
			s.err = err
		}
		s.mu.Unlock()
	}
}

// Fence implements Space.
func (s *Serial) Fence() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements Space.
func (s *Serial) Close() {}
