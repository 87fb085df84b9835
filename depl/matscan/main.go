package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/xerrors"

	"github.com/moratsam/matscan/dispatcher"
	"github.com/moratsam/matscan/matrix"
	"github.com/moratsam/matscan/strategy"
)

var (
	appName = "matscan"
	appSha  = "populated-at-link-time"
	logger  *logrus.Entry
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	rootLogger.SetFormatter(new(logrus.JSONFormatter))
	logger = rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSha,
		"host": host,
	})

	if err := makeApp().Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to error")
		_ = os.Stderr.Sync()
		os.Exit(1)
	}
}

func makeApp() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appSha
	app.Usage = "multiply two random square matrices using the selected execution mode"
	app.ArgsUsage = "<" + strategy.Usage + ">"
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:   "size",
			Value:  500,
			EnvVar: "MATRIX_SIZE",
			Usage:  "The number of rows and columns of the generated matrices",
		},
		cli.IntFlag{
			Name:   "workers",
			Value:  runtime.NumCPU(),
			EnvVar: "NUM_WORKERS",
			Usage:  "The number of partitions/workers for the parallel modes (defaults to number of CPUs)",
		},
		cli.IntFlag{
			Name:   "max-retries",
			EnvVar: "MAX_RETRIES",
			Usage:  "The number of times a failed partition is re-dispatched before giving up",
		},
		cli.DurationFlag{
			Name:   "worker-timeout",
			EnvVar: "WORKER_TIMEOUT",
			Usage:  "The maximum time to wait for the next worker to report; 0 waits indefinitely",
		},
		cli.Int64Flag{
			Name:   "seed",
			Value:  time.Now().UnixNano(),
			EnvVar: "SEED",
			Usage:  "The seed for generating the input matrices",
		},
		cli.StringFlag{
			Name:   "log-level",
			Value:  "info",
			EnvVar: "LOG_LEVEL",
			Usage:  "The log level (debug, info, warn, error)",
		},
	}
	app.Before = func(appCtx *cli.Context) error {
		lvl, err := logrus.ParseLevel(appCtx.String("log-level"))
		if err != nil {
			return err
		}
		logger.Logger.SetLevel(lvl)
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:   strategy.WorkerCommand,
			Usage:  "Serve a single task on stdin/stdout (used by the cluster mode)",
			Hidden: true,
			Action: func(*cli.Context) error {
				return strategy.ServeWorker(os.Stdin, os.Stdout)
			},
		},
	}
	app.Action = runMain
	return app
}

func runMain(appCtx *cli.Context) error {
	mode, err := strategy.ParseMode(appCtx.Args().First())
	if err != nil {
		_ = cli.ShowAppHelp(appCtx)
		return err
	}

	var (
		ctx, cancelFn = context.WithCancel(context.Background())
		logger        = logger.WithField("mode", mode.String())
		workers       = appCtx.Int("workers")
	)
	defer cancelFn()

	// The single-threaded mode multiplies the whole matrix in one go.
	if mode == strategy.ModeInline {
		workers = 1
	}

	d, err := strategy.NewDispatcher(mode, dispatcher.Config{
		Workers:       workers,
		MaxRetries:    appCtx.Int("max-retries"),
		WorkerTimeout: appCtx.Duration("worker-timeout"),
		Logger:        logger,
	}, strategy.ProcessConfig{
		Logger: logger,
	})
	if err != nil {
		return err
	}

	// Start signal watcher
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGHUP)
		select {
		case s := <-sigCh:
			logger.WithField("signal", s.String()).Infof("shutting down due to signal")
			cancelFn()
		case <-ctx.Done():
		}
	}()

	size := appCtx.Int("size")
	if size < 0 {
		return xerrors.Errorf("invalid matrix size %d", size)
	}
	rng := rand.New(rand.NewSource(appCtx.Int64("seed")))
	a, b := matrix.Random(size, rng), matrix.Random(size, rng)

	start := clock.WallClock.Now()
	if _, err = d.Run(ctx, a, b); err != nil {
		return err
	}
	elapsed := clock.WallClock.Now().Sub(start)

	logger.WithFields(logrus.Fields{
		"size":       size,
		"workers":    workers,
		"total_time": elapsed.String(),
	}).Info("matrix multiplication complete")
	fmt.Fprintf(appCtx.App.Writer, "Execution Time (%s): %.2f ms\n", mode, float64(elapsed)/float64(time.Millisecond))
	return nil
}
