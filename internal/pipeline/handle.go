package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Handle is the pending result of an extraction submitted for background
// processing. The extraction key is known immediately; the outcome arrives
// when the run finishes.
type Handle struct {
	key  uuid.UUID
	done chan struct{}

	once   sync.Once
	result *Result
	err    error
}

func NewHandle(key uuid.UUID) *Handle {
	return &Handle{key: key, done: make(chan struct{})}
}

// ExtractionKey is the correlation id for the run's progress events.
func (h *Handle) ExtractionKey() uuid.UUID {
	return h.key
}

// Done is closed when the run has finished, successfully or not.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run finishes or ctx is cancelled.
func (h *Handle) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve records the outcome and releases waiters. Later calls are no-ops;
// a run resolves exactly once.
func (h *Handle) Resolve(result *Result, err error) {
	h.once.Do(func() {
		h.result = result
		h.err = err
		close(h.done)
	})
}
