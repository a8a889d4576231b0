package livepers

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TaskRunner runs tasks on an errgroup, with at most maxThreadCount of them in flight.
type TaskRunner struct {
	maxThreadCount int
	eg             *errgroup.Group
	limiterChan    chan bool
	context        context.Context
}

// NewTaskRunner returns a TaskRunner. A maxThreadCount < 1 means one task at a time.
func NewTaskRunner(ctx context.Context, maxThreadCount int) *TaskRunner {
	if maxThreadCount < 1 {
		maxThreadCount = 1
	}
	eg, ctx2 := errgroup.WithContext(ctx)
	return &TaskRunner{
		maxThreadCount: maxThreadCount,
		limiterChan:    make(chan bool, maxThreadCount),
		eg:             eg,
		context:        ctx2,
	}
}

// GetContext returns the errgroup context; it is canceled when a task returns an error.
func (tr *TaskRunner) GetContext() context.Context {
	return tr.context
}

// Go blocks until a slot is free, then runs task.
func (tr *TaskRunner) Go(task func() error) {
	// Occupy a thread slot.
	tr.limiterChan <- true
	tr.eg.Go(func() error {
		// Free up this thread slot.
		defer func() { <-tr.limiterChan }()
		return task()
	})
}

// Wait is a wrapper to errgroup.Wait.
func (tr *TaskRunner) Wait() error {
	return tr.eg.Wait()
}
