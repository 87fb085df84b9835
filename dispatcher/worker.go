package dispatcher

import (
	"context"

	"github.com/moratsam/matscan/matmul"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/moratsam/matscan/dispatcher Spawner,Worker

// Report is the outcome of the task a Worker was given. Exactly one of
// Result and Err is set.
type Report struct {
	Result *matmul.PartialResult
	Err    error
}

// Worker is a handle to a single execution unit. Implementations may run
// the task inline, on a goroutine or in a separate process; the dispatcher
// treats them all the same.
type Worker interface {
	// Send hands a task to the worker. A worker is sent at most one task.
	// Send must not wait for the worker to consume the task; failures that
	// surface afterwards are reported through Recv.
	Send(task *matmul.Task) error

	// Recv returns a channel on which the worker delivers the Report for
	// its task. The channel is closed without a value if the worker
	// terminates before reporting.
	Recv() <-chan Report

	// Close terminates the worker and releases any resources held by it.
	Close() error
}

// Spawner is implemented by objects that can create new workers.
type Spawner interface {
	// Spawn creates a new worker. The worker must not outlive ctx.
	Spawn(ctx context.Context) (Worker, error)
}
