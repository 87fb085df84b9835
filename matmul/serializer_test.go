package matmul

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/gogo/protobuf/types"
	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"

	"github.com/moratsam/matscan/matrix"
	"github.com/moratsam/matscan/partition"
)

var _ = gc.Suite(new(SerializerTestSuite))

type SerializerTestSuite struct{}

func (s *SerializerTestSuite) TestTaskFrame(c *gc.C) {
	task := &Task{
		Left:      matrix.Matrix{{1.5, -2}, {3, 4e10}, {0, 0.25}},
		Right:     matrix.Matrix{{5, 6, 7}, {8, 9, 10}},
		Partition: partition.Partition{Start: 1, End: 3},
	}

	var buf bytes.Buffer
	c.Assert(NewEncoder(&buf).WriteTask(task), gc.IsNil)

	dec := NewDecoder(&buf)
	got, err := dec.ReadTask()
	c.Assert(err, gc.IsNil)
	c.Assert(got, gc.DeepEquals, task)

	_, err = dec.ReadTask()
	c.Assert(err, gc.Equals, io.EOF)
}

func (s *SerializerTestSuite) TestResultAndErrorFrames(c *gc.C) {
	res := &PartialResult{
		Partition: partition.Partition{Start: 4, End: 5},
		Rows:      matrix.Matrix{{19, 22}},
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	c.Assert(enc.WriteResult(res), gc.IsNil)
	c.Assert(enc.WriteError(xerrors.New("boom")), gc.IsNil)

	dec := NewDecoder(&buf)
	got, err := dec.ReadResult()
	c.Assert(err, gc.IsNil)
	c.Assert(got, gc.DeepEquals, res)

	_, err = dec.ReadResult()
	c.Assert(err, gc.ErrorMatches, "boom: remote worker error")
	c.Assert(xerrors.Is(err, ErrRemoteWorker), gc.Equals, true)
}

func (s *SerializerTestSuite) TestUnexpectedFrame(c *gc.C) {
	var buf bytes.Buffer
	c.Assert(NewEncoder(&buf).WriteResult(&PartialResult{Rows: matrix.Matrix{}}), gc.IsNil)

	_, err := NewDecoder(&buf).ReadTask()
	c.Assert(err, gc.ErrorMatches, `expected task frame, got \*matmul.PartialResult`)
}

func (s *SerializerTestSuite) TestRejectsRaggedMatrix(c *gc.C) {
	_, err := serializer{}.Serialize(&Task{Left: matrix.Matrix{{1}, {2, 3}}, Right: matrix.Fill(1, 1, 1)})
	c.Assert(err, gc.ErrorMatches, "serialize: left matrix: .*")
}

func (s *SerializerTestSuite) TestTruncatedPayload(c *gc.C) {
	msg, err := serializer{}.Serialize(&PartialResult{Rows: matrix.Fill(2, 2, 1)})
	c.Assert(err, gc.IsNil)

	msg.Value = msg.Value[:len(msg.Value)-3]
	_, err = serializer{}.Unserialize(msg)
	c.Assert(err, gc.ErrorMatches, "unserialize result: truncated frame")

	_, err = serializer{}.Unserialize(&types.Any{TypeUrl: "bogus"})
	c.Assert(err, gc.ErrorMatches, `unserialize: unknown type "bogus"`)
}

func (s *SerializerTestSuite) TestOversizedDimensions(c *gc.C) {
	specs := []struct {
		descr      string
		rows, cols uint64
		expErr     string
	}{
		{"zero-width rows beyond limit", 1 << 26, 0, "unserialize result: matrix dimensions exceed frame limits"},
		{"rows beyond frame size", 1 << 28, 1, "unserialize result: matrix dimensions exceed frame limits"},
		{"columns beyond frame size", 1, 1 << 28, "unserialize result: matrix dimensions exceed frame limits"},
		{"element count overflowing the payload", 1 << 27, 1 << 27, "unserialize result: truncated frame"},
	}

	for _, spec := range specs {
		c.Logf("%s", spec.descr)
		buf := appendPartition(nil, partition.Partition{Start: 0, End: 1})
		buf = binary.AppendUvarint(buf, spec.rows)
		buf = binary.AppendUvarint(buf, spec.cols)

		_, err := serializer{}.Unserialize(&types.Any{TypeUrl: typeResult, Value: buf})
		c.Assert(err, gc.ErrorMatches, spec.expErr)
	}
}

func (s *SerializerTestSuite) TestZeroWidthResult(c *gc.C) {
	res := &PartialResult{
		Partition: partition.Partition{Start: 0, End: 3},
		Rows:      matrix.New(3, 0),
	}
	msg, err := serializer{}.Serialize(res)
	c.Assert(err, gc.IsNil)

	got, err := serializer{}.Unserialize(msg)
	c.Assert(err, gc.IsNil)
	c.Assert(got, gc.DeepEquals, res)
}
