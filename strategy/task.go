package strategy

import (
	"context"
	"sync/atomic"

	"golang.org/x/xerrors"

	"github.com/moratsam/matscan/dispatcher"
	"github.com/moratsam/matscan/matmul"
)

// TaskSpawner creates workers that run their task on a dedicated goroutine.
// Each worker receives its own deep copy of the task.
type TaskSpawner struct{}

// Spawn implements dispatcher.Spawner.
func (TaskSpawner) Spawn(context.Context) (dispatcher.Worker, error) {
	return &taskWorker{reportCh: make(chan dispatcher.Report, 1)}, nil
}

type taskWorker struct {
	reportCh chan dispatcher.Report
	sent     int32
}

func (w *taskWorker) Send(task *matmul.Task) error {
	if !atomic.CompareAndSwapInt32(&w.sent, 0, 1) {
		return errTaskAlreadySent
	}
	go w.run(task.Clone())
	return nil
}

func (w *taskWorker) run(task *matmul.Task) {
	defer func() {
		if r := recover(); r != nil {
			w.reportCh <- dispatcher.Report{Err: xerrors.Errorf("worker panicked: %v", r)}
		}
	}()

	res, err := matmul.Execute(task)
	w.reportCh <- dispatcher.Report{Result: res, Err: err}
}

func (w *taskWorker) Recv() <-chan dispatcher.Report { return w.reportCh }

// Close is a no-op; a running kernel cannot be interrupted and its report
// is simply never read.
func (w *taskWorker) Close() error { return nil }
