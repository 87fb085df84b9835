package dispatcher

import (
	"io/ioutil"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Config encapsulates the settings for configuring a Dispatcher.
type Config struct {
	// The Spawner used for creating a fresh worker for every partition.
	Spawner Spawner

	// The number of partitions the rows of the left matrix are split into.
	// Each partition is handled by its own worker.
	Workers int

	// The number of times a failed partition is re-dispatched to a new
	// worker before the whole job fails. Defaults to 0 (no retries).
	MaxRetries int

	// The maximum time to wait for the next worker report. If not
	// specified, the dispatcher will wait indefinitely.
	WorkerTimeout time.Duration

	// A clock instance for generating time-related events. If not specified,
	// the default wall-clock will be used instead.
	Clock clock.Clock

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Spawner == nil {
		err = multierror.Append(err, xerrors.Errorf("worker spawner has not been provided"))
	}
	if cfg.Workers <= 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for workers"))
	}
	if cfg.MaxRetries < 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for max retries"))
	}
	if cfg.WorkerTimeout < 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for worker timeout"))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}
