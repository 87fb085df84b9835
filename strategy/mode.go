package strategy

import (
	"golang.org/x/xerrors"

	"github.com/moratsam/matscan/dispatcher"
)

// ErrUnknownMode is returned by ParseMode for unrecognized mode names.
var ErrUnknownMode = xerrors.New("unknown execution mode")

// Mode selects the concurrency substrate used for running workers.
type Mode uint8

const (
	// ModeInline computes every partition on the dispatching goroutine.
	ModeInline Mode = iota

	// ModeTaskParallel runs each partition on its own goroutine.
	ModeTaskParallel

	// ModeProcessParallel runs each partition in its own OS process.
	ModeProcessParallel
)

// Usage lists the mode names accepted by ParseMode.
const Usage = "single-threaded|worker-threads|cluster"

func (m Mode) String() string {
	switch m {
	case ModeInline:
		return "single-threaded"
	case ModeTaskParallel:
		return "worker-threads"
	case ModeProcessParallel:
		return "cluster"
	default:
		return "unknown"
	}
}

// ParseMode maps a mode name to a Mode. Both the short names and their
// descriptive aliases are accepted.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "single-threaded", "inline":
		return ModeInline, nil
	case "worker-threads", "task-parallel":
		return ModeTaskParallel, nil
	case "cluster", "process-parallel":
		return ModeProcessParallel, nil
	default:
		return 0, xerrors.Errorf("%q: %w", name, ErrUnknownMode)
	}
}

// NewSpawner returns the worker spawner for the given mode. procCfg is only
// used for ModeProcessParallel.
func NewSpawner(mode Mode, procCfg ProcessConfig) (dispatcher.Spawner, error) {
	switch mode {
	case ModeInline:
		return InlineSpawner{}, nil
	case ModeTaskParallel:
		return TaskSpawner{}, nil
	case ModeProcessParallel:
		return NewProcessSpawner(procCfg)
	default:
		return nil, xerrors.Errorf("mode %d: %w", mode, ErrUnknownMode)
	}
}

// NewDispatcher creates a dispatcher whose workers run on the substrate
// selected by mode. Any spawner already set in cfg is replaced.
func NewDispatcher(mode Mode, cfg dispatcher.Config, procCfg ProcessConfig) (*dispatcher.Dispatcher, error) {
	spawner, err := NewSpawner(mode, procCfg)
	if err != nil {
		return nil, err
	}
	cfg.Spawner = spawner
	return dispatcher.New(cfg)
}
