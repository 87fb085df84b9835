package strategy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/moratsam/matscan/dispatcher"
	"github.com/moratsam/matscan/matmul"
)

// WorkerCommand is the argument that makes the matscan binary serve a single
// task on its standard input and output.
const WorkerCommand = "worker"

// ProcessConfig encapsulates the settings for spawning worker processes.
type ProcessConfig struct {
	// The executable to start for each worker. If not specified, the
	// currently running executable is used together with WorkerCommand.
	Path string

	// The arguments passed to the worker executable.
	Args []string

	// Extra environment variables for the worker processes, in addition to
	// the environment of the current process.
	Env []string

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *ProcessConfig) validate() error {
	if cfg.Path == "" {
		exe, err := os.Executable()
		if err != nil {
			return xerrors.Errorf("unable to detect worker executable: %w", err)
		}
		cfg.Path = exe
		if cfg.Args == nil {
			cfg.Args = []string{WorkerCommand}
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return nil
}

// ProcessSpawner starts a fresh OS process for every worker. The dispatcher
// and the process exchange exactly one task frame and one reply frame over
// the process' stdin and stdout.
type ProcessSpawner struct {
	cfg ProcessConfig
}

// NewProcessSpawner creates a new ProcessSpawner with the specified config.
func NewProcessSpawner(cfg ProcessConfig) (*ProcessSpawner, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("process spawner: config validation failed: %w", err)
	}
	return &ProcessSpawner{cfg: cfg}, nil
}

// Spawn implements dispatcher.Spawner. The process is killed when ctx is
// cancelled.
func (s *ProcessSpawner) Spawn(ctx context.Context) (dispatcher.Worker, error) {
	cmd := exec.CommandContext(ctx, s.cfg.Path, s.cfg.Args...)
	cmd.Env = append(os.Environ(), s.cfg.Env...)

	w := &processWorker{
		cmd:      cmd,
		writeCh:  make(chan struct{}),
		reportCh: make(chan dispatcher.Report, 1),
		doneCh:   make(chan struct{}),
	}
	cmd.Stderr = &w.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, xerrors.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, xerrors.Errorf("worker stdout: %w", err)
	}
	if err = cmd.Start(); err != nil {
		return nil, xerrors.Errorf("start worker process: %w", err)
	}

	w.stdin = stdin
	w.enc = matmul.NewEncoder(stdin)
	w.logger = s.cfg.Logger.WithField("pid", cmd.Process.Pid)
	w.logger.Debug("started worker process")

	go w.readReply(matmul.NewDecoder(stdout))
	return w, nil
}

type processWorker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	enc    *matmul.Encoder
	stderr bytes.Buffer
	logger *logrus.Entry

	sent      int32
	writeErr  error
	writeCh   chan struct{}
	reportCh  chan dispatcher.Report
	doneCh    chan struct{}
	closeOnce sync.Once
}

// Send hands the task to the worker process in the background so that a
// process that never drains its stdin cannot stall the caller. Write errors
// are reported through Recv.
func (w *processWorker) Send(task *matmul.Task) error {
	if !atomic.CompareAndSwapInt32(&w.sent, 0, 1) {
		return errTaskAlreadySent
	}

	go func() {
		defer close(w.writeCh)
		err := w.enc.WriteTask(task)
		// The worker serves a single task; closing stdin signals that no
		// more frames will follow.
		if closeErr := w.stdin.Close(); err == nil {
			err = closeErr
		}
		w.writeErr = err
	}()
	return nil
}

func (w *processWorker) Recv() <-chan dispatcher.Report { return w.reportCh }

// Close kills the worker process if it is still running and waits for it
// to be reaped.
func (w *processWorker) Close() error {
	w.closeOnce.Do(func() {
		_ = w.cmd.Process.Kill()
	})
	<-w.doneCh
	if atomic.LoadInt32(&w.sent) == 1 {
		<-w.writeCh
	}
	return nil
}

// readReply waits for the single reply frame, reaps the process and
// delivers the outcome on reportCh.
func (w *processWorker) readReply(dec *matmul.Decoder) {
	defer close(w.doneCh)

	res, readErr := dec.ReadResult()
	waitErr := w.cmd.Wait()

	switch {
	case readErr == nil:
		w.reportCh <- dispatcher.Report{Result: res}
	case xerrors.Is(readErr, matmul.ErrRemoteWorker):
		w.reportCh <- dispatcher.Report{Err: readErr}
	default:
		status := fmt.Sprint(waitErr)
		if writeErr := w.sendErr(); writeErr != nil {
			status += "; send task: " + writeErr.Error()
		}
		err := xerrors.Errorf("worker process exited without reporting a result (%s): %w", status, readErr)
		if msg := strings.TrimSpace(w.stderr.String()); msg != "" {
			err = xerrors.Errorf("%s: %w", msg, err)
		}
		w.reportCh <- dispatcher.Report{Err: err}
	}

	w.logger.WithField("exit_err", waitErr).Debug("worker process exited")
}

// sendErr returns the error of a completed background task write.
func (w *processWorker) sendErr() error {
	select {
	case <-w.writeCh:
		return w.writeErr
	default:
		return nil
	}
}

// ServeWorker implements the worker side of the process protocol: it reads
// a single task from r, computes it and writes the result (or the error) to
// w.
func ServeWorker(r io.Reader, w io.Writer) error {
	task, err := matmul.NewDecoder(r).ReadTask()
	if err != nil {
		return xerrors.Errorf("read task: %w", err)
	}

	enc := matmul.NewEncoder(w)
	res, err := matmul.Execute(task)
	if err != nil {
		return enc.WriteError(err)
	}
	return enc.WriteResult(res)
}
