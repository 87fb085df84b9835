package dispatcher

import (
	"fmt"

	"golang.org/x/xerrors"

	"github.com/moratsam/matscan/partition"
)

var (
	// ErrWorkerFailure is matched by errors reporting that a partition
	// could not be computed by any of the workers it was dispatched to.
	ErrWorkerFailure = xerrors.New("worker failure")

	// ErrWorkerTimeout is returned when no worker reports back within the
	// configured worker timeout.
	ErrWorkerTimeout = xerrors.New("worker timeout")

	// ErrJobCancelled is returned by Job.Wait when the job was cancelled
	// before all partitions reported.
	ErrJobCancelled = xerrors.New("job was cancelled")

	// errWorkerExited is reported when a worker terminates without
	// delivering a result.
	errWorkerExited = xerrors.New("worker exited without reporting a result")
)

// WorkerError describes the final failure of a single partition.
type WorkerError struct {
	// The partition that could not be computed.
	Partition partition.Partition

	// The number of workers the partition was dispatched to.
	Attempts int

	// The error reported by the last attempt.
	Err error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("partition %s failed after %d attempt(s): %v", e.Partition, e.Attempts, e.Err)
}

// Unwrap returns the error reported by the last attempt.
func (e *WorkerError) Unwrap() error { return e.Err }

// Is allows WorkerError to be matched against ErrWorkerFailure.
func (e *WorkerError) Is(target error) bool { return target == ErrWorkerFailure }
