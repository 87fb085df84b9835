package matmul

import (
	"github.com/moratsam/matscan/matrix"
	"github.com/moratsam/matscan/partition"
)

// Task bundles the input that a worker needs for computing the rows of a
// single partition. A Task must not be modified once it has been dispatched.
type Task struct {
	// The left operand. Only the rows inside Partition are used.
	Left matrix.Matrix

	// The right operand.
	Right matrix.Matrix

	// The rows of the left matrix assigned to the worker.
	Partition partition.Partition
}

// Clone returns a deep copy of the task, so that the receiver of the copy
// shares no memory with the dispatcher.
func (t *Task) Clone() *Task {
	return &Task{
		Left:      t.Left.Clone(),
		Right:     t.Right.Clone(),
		Partition: t.Partition,
	}
}

// PartialResult holds the rows computed by a worker for its partition.
type PartialResult struct {
	Partition partition.Partition

	// Rows[i] is row Partition.Start+i of the final product.
	Rows matrix.Matrix
}
