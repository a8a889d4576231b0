package livepers

import (
	"context"
	"errors"
	"sync"
)

// Pending is the asynchronous result of a back-end write or delete. Callers may Wait on it
// or simply drop it.
type Pending struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewPending returns an incomplete Pending.
func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Completed returns a Pending already completed with err.
func Completed(err error) *Pending {
	p := NewPending()
	p.Complete(err)
	return p
}

// Go runs task in a new goroutine and returns its Pending result.
func Go(ctx context.Context, task func(ctx context.Context) error) *Pending {
	p := NewPending()
	go func() {
		p.Complete(task(ctx))
	}()
	return p
}

// Complete records err and releases waiters. Only the first call has an effect.
func (p *Pending) Complete(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed once the operation completed.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the operation error; it is nil until Done is closed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the operation completed or ctx is done.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush is the result of processing one dirty list. All operations were issued when the
// Flush is returned; they may still be completing.
type Flush struct {
	Label   string
	Writes  int
	Deletes int

	runner *TaskRunner
	done   chan struct{}
	mu     sync.Mutex
	errs   []error
}

// NewFlush returns a Flush whose operations are run by runner. Call Seal once every
// operation was issued.
func NewFlush(label string, runner *TaskRunner) *Flush {
	return &Flush{
		Label:  label,
		runner: runner,
		done:   make(chan struct{}),
	}
}

// Record stores the failure of one operation, nil is ignored.
func (f *Flush) Record(err error) {
	if err == nil {
		return
	}
	f.mu.Lock()
	f.errs = append(f.errs, err)
	f.mu.Unlock()
}

// Seal starts waiting for the issued operations in the background.
func (f *Flush) Seal() {
	if f.runner == nil {
		close(f.done)
		return
	}
	go func() {
		_ = f.runner.Wait()
		close(f.done)
	}()
}

// Done is closed once every operation of the flush completed.
func (f *Flush) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until every operation completed (or ctx is done) and returns the joined
// failures of the individual operations.
func (f *Flush) Wait(ctx context.Context) error {
	select {
	case <-f.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return errors.Join(f.errs...)
}
