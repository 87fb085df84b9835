package matmul

import (
	"encoding/binary"
	"io"
	"math"

	protoio "github.com/gogo/protobuf/io"
	"github.com/gogo/protobuf/types"
	"golang.org/x/xerrors"

	"github.com/moratsam/matscan/matrix"
	"github.com/moratsam/matscan/partition"
)

const (
	typeTask   = "task"
	typeResult = "result"
	typeError  = "error"

	// MaxFrameSize is the largest frame accepted by a Decoder.
	MaxFrameSize = 1 << 30

	// maxZeroWidthRows bounds the row count of a decoded matrix without
	// columns, as such rows take up no space in the frame.
	maxZeroWidthRows = 1 << 16
)

var (
	// ErrRemoteWorker is returned by a Decoder when the peer replied with
	// an error frame instead of a result.
	ErrRemoteWorker = xerrors.New("remote worker error")

	errTruncatedFrame = xerrors.New("truncated frame")
	errMatrixTooLarge = xerrors.New("matrix dimensions exceed frame limits")
)

type serializer struct {
}

// Serialize encodes a *Task, *PartialResult or error into a types.Any
// protobuf message.
func (serializer) Serialize(v interface{}) (*types.Any, error) {
	switch val := v.(type) {
	case *Task:
		if err := val.Left.Validate(); err != nil {
			return nil, xerrors.Errorf("serialize: left matrix: %w", err)
		} else if err := val.Right.Validate(); err != nil {
			return nil, xerrors.Errorf("serialize: right matrix: %w", err)
		}
		buf := appendPartition(nil, val.Partition)
		buf = appendMatrix(buf, val.Left)
		buf = appendMatrix(buf, val.Right)
		return &types.Any{TypeUrl: typeTask, Value: buf}, nil
	case *PartialResult:
		if err := val.Rows.Validate(); err != nil {
			return nil, xerrors.Errorf("serialize: result rows: %w", err)
		}
		buf := appendPartition(nil, val.Partition)
		buf = appendMatrix(buf, val.Rows)
		return &types.Any{TypeUrl: typeResult, Value: buf}, nil
	case error:
		return &types.Any{TypeUrl: typeError, Value: []byte(val.Error())}, nil
	default:
		return nil, xerrors.Errorf("serialize: unknown type %#+T", val)
	}
}

// Unserialize decodes the given types.Any protobuf value. Error frames are
// returned as a value wrapping ErrRemoteWorker.
func (serializer) Unserialize(v *types.Any) (interface{}, error) {
	r := &frameReader{buf: v.Value}
	switch v.TypeUrl {
	case typeTask:
		task := &Task{Partition: r.partition()}
		task.Left = r.matrix()
		task.Right = r.matrix()
		if r.err != nil {
			return nil, xerrors.Errorf("unserialize task: %w", r.err)
		}
		return task, nil
	case typeResult:
		res := &PartialResult{Partition: r.partition()}
		res.Rows = r.matrix()
		if r.err != nil {
			return nil, xerrors.Errorf("unserialize result: %w", r.err)
		}
		return res, nil
	case typeError:
		return xerrors.Errorf("%s: %w", string(v.Value), ErrRemoteWorker), nil
	default:
		return nil, xerrors.Errorf("unserialize: unknown type %q", v.TypeUrl)
	}
}

func appendPartition(buf []byte, p partition.Partition) []byte {
	buf = binary.AppendUvarint(buf, uint64(p.Start))
	return binary.AppendUvarint(buf, uint64(p.End))
}

func appendMatrix(buf []byte, m matrix.Matrix) []byte {
	buf = binary.AppendUvarint(buf, uint64(m.Rows()))
	buf = binary.AppendUvarint(buf, uint64(m.Cols()))
	for _, row := range m {
		for _, v := range row {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}
	return buf
}

// frameReader decodes the values written by the append helpers. The first
// decoding error sticks and turns all subsequent reads into no-ops.
type frameReader struct {
	buf []byte
	err error
}

func (r *frameReader) uvarint() int {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf)
	if n <= 0 || v > math.MaxInt32 {
		r.err = errTruncatedFrame
		return 0
	}
	r.buf = r.buf[n:]
	return int(v)
}

func (r *frameReader) partition() partition.Partition {
	start := r.uvarint()
	end := r.uvarint()
	return partition.Partition{Start: start, End: end}
}

func (r *frameReader) matrix() matrix.Matrix {
	rows, cols := r.uvarint(), r.uvarint()
	if r.err != nil {
		return nil
	}
	if rows > MaxFrameSize/8 || cols > MaxFrameSize/8 || (cols == 0 && rows > maxZeroWidthRows) {
		r.err = errMatrixTooLarge
		return nil
	}
	if cols > 0 && rows > len(r.buf)/8/cols {
		r.err = errTruncatedFrame
		return nil
	}

	m := matrix.New(rows, cols)
	for i := range m {
		for j := range m[i] {
			m[i][j] = math.Float64frombits(binary.LittleEndian.Uint64(r.buf))
			r.buf = r.buf[8:]
		}
	}
	return m
}

// Encoder writes tasks, results and errors to a stream as length-delimited
// protobuf frames.
type Encoder struct {
	w protoio.WriteCloser
}

// NewEncoder returns an Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: protoio.NewDelimitedWriter(w)}
}

// WriteTask writes a task frame.
func (e *Encoder) WriteTask(task *Task) error { return e.write(task) }

// WriteResult writes a result frame.
func (e *Encoder) WriteResult(res *PartialResult) error { return e.write(res) }

// WriteError writes an error frame carrying the error message.
func (e *Encoder) WriteError(err error) error { return e.write(err) }

func (e *Encoder) write(v interface{}) error {
	msg, err := serializer{}.Serialize(v)
	if err != nil {
		return err
	}
	if err = e.w.WriteMsg(msg); err != nil {
		return xerrors.Errorf("write frame: %w", err)
	}
	return nil
}

// Decoder reads frames written by an Encoder.
type Decoder struct {
	r protoio.ReadCloser
}

// NewDecoder returns a Decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: protoio.NewDelimitedReader(r, MaxFrameSize)}
}

// ReadTask reads the next frame and expects it to be a task. It returns
// io.EOF when the stream ends before a frame starts.
func (d *Decoder) ReadTask() (*Task, error) {
	v, err := d.read()
	if err != nil {
		return nil, err
	}
	task, ok := v.(*Task)
	if !ok {
		return nil, xerrors.Errorf("expected task frame, got %T", v)
	}
	return task, nil
}

// ReadResult reads the next frame and expects it to be a result. If the
// peer sent an error frame, the returned error wraps ErrRemoteWorker.
func (d *Decoder) ReadResult() (*PartialResult, error) {
	v, err := d.read()
	if err != nil {
		return nil, err
	}
	switch val := v.(type) {
	case *PartialResult:
		return val, nil
	case error:
		return nil, val
	default:
		return nil, xerrors.Errorf("expected result frame, got %T", v)
	}
}

func (d *Decoder) read() (interface{}, error) {
	var msg types.Any
	if err := d.r.ReadMsg(&msg); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, xerrors.Errorf("read frame: %w", err)
	}
	return serializer{}.Unserialize(&msg)
}
