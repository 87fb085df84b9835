package dispatcher

import (
	"context"
	"time"

	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(ConfigTestSuite))

type ConfigTestSuite struct{}

type nopSpawner struct{}

func (nopSpawner) Spawn(context.Context) (Worker, error) { return nil, nil }

func (s *ConfigTestSuite) TestConfigValidation(c *gc.C) {
	origCfg := Config{
		Spawner:       nopSpawner{},
		Workers:       4,
		MaxRetries:    1,
		WorkerTimeout: time.Minute,
	}

	cfg := origCfg
	c.Assert(cfg.validate(), gc.IsNil)
	c.Assert(cfg.Clock, gc.Not(gc.IsNil), gc.Commentf("default clock was not assigned"))
	c.Assert(cfg.Logger, gc.Not(gc.IsNil), gc.Commentf("default logger was not assigned"))

	cfg = origCfg
	cfg.Spawner = nil
	c.Assert(cfg.validate(), gc.ErrorMatches, "(?ms).*worker spawner has not been provided.*")

	cfg = origCfg
	cfg.Workers = 0
	c.Assert(cfg.validate(), gc.ErrorMatches, "(?ms).*invalid value for workers.*")

	cfg = origCfg
	cfg.MaxRetries = -1
	c.Assert(cfg.validate(), gc.ErrorMatches, "(?ms).*invalid value for max retries.*")

	cfg = origCfg
	cfg.WorkerTimeout = -time.Second
	c.Assert(cfg.validate(), gc.ErrorMatches, "(?ms).*invalid value for worker timeout.*")

	_, err := New(Config{})
	c.Assert(err, gc.ErrorMatches, "(?ms)dispatcher: config validation failed: .*worker spawner.*invalid value for workers.*")
}

func (s *ConfigTestSuite) TestStateString(c *gc.C) {
	c.Assert(StateCreated.String(), gc.Equals, "created")
	c.Assert(StateAwaiting.String(), gc.Equals, "awaiting")
	c.Assert(StateCancelled.String(), gc.Equals, "cancelled")
	c.Assert(State(42).String(), gc.Equals, "unknown")
}
