package strategy

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/moratsam/matscan/dispatcher"
	"github.com/moratsam/matscan/matmul"
)

var errTaskAlreadySent = xerrors.New("worker has already been sent a task")

// InlineSpawner creates workers that execute their task synchronously
// inside Send.
type InlineSpawner struct{}

// Spawn implements dispatcher.Spawner.
func (InlineSpawner) Spawn(context.Context) (dispatcher.Worker, error) {
	return &inlineWorker{reportCh: make(chan dispatcher.Report, 1)}, nil
}

type inlineWorker struct {
	reportCh chan dispatcher.Report
	sent     bool
}

func (w *inlineWorker) Send(task *matmul.Task) error {
	if w.sent {
		return errTaskAlreadySent
	}
	w.sent = true

	res, err := matmul.Execute(task)
	w.reportCh <- dispatcher.Report{Result: res, Err: err}
	return nil
}

func (w *inlineWorker) Recv() <-chan dispatcher.Report { return w.reportCh }

func (w *inlineWorker) Close() error { return nil }
