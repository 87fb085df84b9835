package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/moratsam/matscan/matmul"
	"github.com/moratsam/matscan/matrix"
	"github.com/moratsam/matscan/partition"
)

// State describes the lifecycle stage of a Job.
type State uint8

const (
	// StateCreated is the state of a job that has not dispatched any
	// partitions yet.
	StateCreated State = iota

	// StateDispatching indicates that tasks are being handed to workers.
	StateDispatching

	// StateAwaiting indicates that all tasks were dispatched and the job
	// is waiting for the pending partitions to report.
	StateAwaiting

	// StateComplete indicates that every partition reported successfully.
	StateComplete

	// StateFailed indicates that a partition failed or timed out.
	StateFailed

	// StateCancelled indicates that the job was cancelled.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateDispatching:
		return "dispatching"
	case StateAwaiting:
		return "awaiting"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// partitionReport is a worker Report tagged with the partition index it
// belongs to.
type partitionReport struct {
	index int
	Report
}

// Job is the in-flight state of a single multiplication. It owns the result
// matrix; workers never get access to it.
type Job struct {
	id    string
	cfg   Config
	left     matrix.Matrix
	right    matrix.Matrix
	rowRange *partition.Range
	parts    []partition.Partition

	ctx      context.Context
	cancelFn func()
	doneCh   chan struct{}

	mu    sync.Mutex
	state State

	// The fields below are only accessed by the run goroutine until doneCh
	// is closed.
	result    matrix.Matrix
	pending   int
	attempts  []int
	workers   []Worker
	reportCh  chan partitionReport
	wg        sync.WaitGroup
	logger    *logrus.Entry
	startedAt time.Time
	err       error
}

func newJob(ctx context.Context, cfg Config, left, right matrix.Matrix, rowRange *partition.Range) *Job {
	ctx, cancelFn := context.WithCancel(ctx)
	id := uuid.New().String()
	parts := rowRange.Partitions()
	_, rows := rowRange.Extents()

	pending := 0
	for _, p := range parts {
		if !p.Empty() {
			pending++
		}
	}

	return &Job{
		id:       id,
		cfg:      cfg,
		left:     left,
		right:    right,
		rowRange: rowRange,
		parts:    parts,
		ctx:      ctx,
		cancelFn: cancelFn,
		doneCh:   make(chan struct{}),
		state:    StateCreated,
		result:   matrix.New(rows, right.Cols()),
		pending:  pending,
		attempts: make([]int, rowRange.NumPartitions()),
		reportCh: make(chan partitionReport),
		logger:   cfg.Logger.WithField("job_id", id),
	}
}

// ID returns the unique ID of the job.
func (j *Job) ID() string { return j.id }

// State returns the current state of the job.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

// Done returns a channel that is closed once the job has reached a terminal
// state and all of its workers have been closed.
func (j *Job) Done() <-chan struct{} { return j.doneCh }

// Cancel stops the job. Outstanding workers are terminated and any rows
// received so far are discarded. Cancelling a finished job is a no-op.
func (j *Job) Cancel() { j.cancelFn() }

// Wait blocks until the job finishes and returns the assembled product.
func (j *Job) Wait() (matrix.Matrix, error) {
	<-j.doneCh
	if j.err != nil {
		return nil, j.err
	}
	return j.result, nil
}

func (j *Job) run() {
	defer close(j.doneCh)
	defer j.cleanup()

	j.startedAt = j.cfg.Clock.Now()
	j.logger.WithFields(logrus.Fields{
		"partitions": j.rowRange.NumPartitions(),
		"pending":    j.pending,
	}).Debug("starting job")

	if err := j.dispatchAll(); err != nil {
		j.finish(err)
		return
	}

	j.setState(StateAwaiting)
	j.finish(j.await())
}

func (j *Job) dispatchAll() error {
	j.setState(StateDispatching)
	for idx, p := range j.parts {
		if p.Empty() {
			continue
		}
		if err := j.dispatch(idx); err != nil {
			return err
		}
	}
	return nil
}

// dispatch spawns a new worker for the partition at idx and sends it the
// partition's task.
func (j *Job) dispatch(idx int) error {
	if j.ctx.Err() != nil {
		return ErrJobCancelled
	}

	j.attempts[idx]++
	w, err := j.cfg.Spawner.Spawn(j.ctx)
	if err != nil {
		return j.retryOrFail(idx, xerrors.Errorf("spawn worker: %w", err))
	}
	j.workers = append(j.workers, w)

	task := &matmul.Task{Left: j.left, Right: j.right, Partition: j.parts[idx]}
	if err = w.Send(task); err != nil {
		return j.retryOrFail(idx, xerrors.Errorf("send task: %w", err))
	}

	j.logger.WithFields(logrus.Fields{
		"partition": j.parts[idx].String(),
		"attempt":   j.attempts[idx],
	}).Debug("dispatched partition")

	j.wg.Add(1)
	go j.forward(idx, w)
	return nil
}

// retryOrFail re-dispatches the partition at idx if its retry budget allows
// it, or returns a WorkerError otherwise.
func (j *Job) retryOrFail(idx int, cause error) error {
	p := j.parts[idx]
	if j.ctx.Err() != nil {
		return ErrJobCancelled
	} else if j.attempts[idx] > j.cfg.MaxRetries {
		return &WorkerError{Partition: p, Attempts: j.attempts[idx], Err: cause}
	}

	j.logger.WithFields(logrus.Fields{
		"partition": p.String(),
		"attempt":   j.attempts[idx],
		"err":       cause,
	}).Warn("partition failed; retrying")
	return j.dispatch(idx)
}

// forward waits for the worker's report and hands it to the run goroutine.
func (j *Job) forward(idx int, w Worker) {
	defer j.wg.Done()

	var rep Report
	select {
	case r, ok := <-w.Recv():
		if !ok {
			r = Report{Err: errWorkerExited}
		}
		rep = r
	case <-j.ctx.Done():
		return
	}

	select {
	case j.reportCh <- partitionReport{index: idx, Report: rep}:
	case <-j.ctx.Done():
	}
}

// await collects reports until no partitions are pending.
func (j *Job) await() error {
	var timer clock.Timer
	var timeoutCh <-chan time.Time
	if j.cfg.WorkerTimeout > 0 {
		t := j.cfg.Clock.NewTimer(j.cfg.WorkerTimeout)
		defer t.Stop()
		timer, timeoutCh = t, t.Chan()
	}

	for j.pending > 0 {
		select {
		case <-j.ctx.Done():
			return ErrJobCancelled
		case <-timeoutCh:
			return xerrors.Errorf("no report received within %s; %d partition(s) pending: %w", j.cfg.WorkerTimeout, j.pending, ErrWorkerTimeout)
		case rep := <-j.reportCh:
			if err := j.handleReport(rep); err != nil {
				return err
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timeoutCh:
					default:
					}
				}
				timer.Reset(j.cfg.WorkerTimeout)
			}
		}
	}
	return nil
}

// handleReport copies a successful partial result into the result matrix
// or schedules a retry for a failed one.
func (j *Job) handleReport(rep partitionReport) error {
	from, to, err := j.rowRange.PartitionExtents(rep.index)
	if err != nil {
		return xerrors.Errorf("report for partition %d: %w", rep.index, err)
	}
	p := partition.Partition{Start: from, End: to}

	if err = rep.Err; err == nil {
		err = j.checkResult(p, rep.Result)
	}
	if err != nil {
		return j.retryOrFail(rep.index, err)
	}

	for i, row := range rep.Result.Rows {
		copy(j.result[p.Start+i], row)
	}
	j.pending--

	j.logger.WithFields(logrus.Fields{
		"partition": p.String(),
		"pending":   j.pending,
	}).Debug("received partial result")
	return nil
}

func (j *Job) checkResult(p partition.Partition, res *matmul.PartialResult) error {
	if res == nil {
		return errWorkerExited
	}
	if res.Partition != p {
		return xerrors.Errorf("worker reported partition %s, expected %s", res.Partition, p)
	}
	if len(res.Rows) != p.Len() {
		return xerrors.Errorf("worker reported %d rows, expected %d: %w", len(res.Rows), p.Len(), matrix.ErrInvalidDimensions)
	}
	for i, row := range res.Rows {
		if len(row) != j.right.Cols() {
			return xerrors.Errorf("worker reported %d columns in row %d, expected %d: %w", len(row), p.Start+i, j.right.Cols(), matrix.ErrInvalidDimensions)
		}
	}
	return nil
}

func (j *Job) finish(err error) {
	fields := logrus.Fields{
		"partitions": j.rowRange.NumPartitions(),
		"total_time": j.cfg.Clock.Now().Sub(j.startedAt).String(),
	}

	switch {
	case err == nil:
		j.setState(StateComplete)
		j.logger.WithFields(fields).Info("completed job")
	case xerrors.Is(err, ErrJobCancelled):
		j.err = err
		j.result = nil
		j.setState(StateCancelled)
		j.logger.WithFields(fields).Info("job cancelled")
	default:
		j.err = err
		j.result = nil
		j.setState(StateFailed)
		j.logger.WithFields(fields).WithField("err", err).Error("job failed")
	}
}

// cleanup terminates all workers spawned by the job and waits for their
// forwarding goroutines to exit.
func (j *Job) cleanup() {
	j.cancelFn()
	for _, w := range j.workers {
		if err := w.Close(); err != nil {
			j.logger.WithField("err", err).Debug("closing worker")
		}
	}
	j.wg.Wait()
}
