package dispatcher

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/moratsam/matscan/matrix"
	"github.com/moratsam/matscan/partition"
)

// Dispatcher splits a matrix multiplication into row partitions, hands each
// partition to a worker obtained from the configured Spawner and assembles
// the partial results into the final product.
//
// A Dispatcher keeps no state between jobs; it is safe to run multiple jobs
// concurrently.
type Dispatcher struct {
	cfg Config
}

// New creates a new Dispatcher with the specified config.
func New(cfg Config) (*Dispatcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("dispatcher: config validation failed: %w", err)
	}
	return &Dispatcher{cfg: cfg}, nil
}

// Run multiplies left by right and blocks until the product is assembled,
// a partition fails, or ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, left, right matrix.Matrix) (matrix.Matrix, error) {
	job, err := d.Start(ctx, left, right)
	if err != nil {
		return nil, err
	}
	return job.Wait()
}

// Start validates the operands and launches a new job in the background.
// Dimension errors are returned before any worker is spawned.
func (d *Dispatcher) Start(ctx context.Context, left, right matrix.Matrix) (*Job, error) {
	if err := matrix.CheckMultiply(left, right); err != nil {
		return nil, xerrors.Errorf("dispatcher: %w", err)
	}

	rowRange, err := partition.NewRange(left.Rows(), d.cfg.Workers)
	if err != nil {
		return nil, xerrors.Errorf("dispatcher: %w", err)
	}

	job := newJob(ctx, d.cfg, left, right, rowRange)
	go job.run()
	return job, nil
}
