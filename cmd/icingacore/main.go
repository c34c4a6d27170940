package main

import (
	"context"
	"fmt"
	"github.com/icinga/icingacore/internal/command"
	"github.com/icinga/icingacore/internal/objectsfile"
	"github.com/icinga/icingacore/pkg/broker"
	"github.com/icinga/icingacore/pkg/engine"
	"github.com/icinga/icingacore/pkg/extcmd"
	"github.com/icinga/icingacore/pkg/metrics"
	"github.com/icinga/icingacore/pkg/notify"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/okzk/sdnotify"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := command.New()
	logger := cmd.Logger
	defer func() { _ = logger.Sync() }()
	defer func() {
		if err := recover(); err != nil {
			type stackTracer interface {
				StackTrace() errors.StackTrace
			}
			if err, ok := err.(stackTracer); ok {
				for _, f := range err.StackTrace() {
					fmt.Printf("%+s:%d\n", f, f)
				}
			}
			panic(err)
		}
	}()

	logger.Info("Starting icingacore")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := cmd.Objects()

	db := cmd.Retention(ctx)
	defer func() { _ = db.Close() }()

	fanout := broker.NewFanout(cmd.Logging.GetChildLogger("broker"), broker.NewLogSink(cmd.Logging.GetChildLogger("alerts")))
	notifier := notify.NewLogNotifier(cmd.Logging.GetChildLogger("notifications"))

	e := engine.New(store, &engine.Options{
		Scheduling:         cmd.Config.Scheduling,
		Flapping:           cmd.Config.Flapping,
		CommandBufferSlots: cmd.Config.CommandBufferSlots,
	}, fanout, notifier, cmd.Logging)
	e.SetRetention(db)

	counters := map[string]metrics.Counter{"dispatch_failures_total": fanout.Failures}

	var sink *broker.RedisSink
	if rc := cmd.Redis(); rc != nil {
		defer func() { _ = rc.Close() }()

		sink = broker.NewRedisSink(rc, e.Instance(), &cmd.Config.Redis.Options, cmd.Logging.GetChildLogger("redis"))
		fanout.Add(sink)
		counters["redis_written_total"] = sink.Written
		counters["redis_dropped_total"] = sink.Dropped
	}

	if err := e.Start(ctx, time.Now()); err != nil {
		logger.Errorw("Can't start engine", zap.Error(err))

		return ExitFailure
	}

	logger.Infow("Engine started", zap.Stringer("instance", e.Instance()), zap.Int("hosts", len(store.Hosts())), zap.Int("services", len(store.Services())))
	_ = sdnotify.Ready()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.Run(ctx)
	})

	if sink != nil {
		g.Go(func() error {
			return sink.Run(ctx)
		})
	}

	if cmd.Config.CommandFile != "" {
		r := extcmd.NewReader(cmd.Config.CommandFile, e.Commands(), cmd.Logging.GetChildLogger("extcmd"))
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	if cmd.Config.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg, e, counters); err != nil {
			logger.Errorw("Can't register metrics", zap.Error(err))

			return ExitFailure
		}

		g.Go(func() error {
			return metrics.Serve(ctx, cmd.Config.Metrics.Listen, reg, cmd.Logging.GetChildLogger("metrics"))
		})
	}

	if cmd.Config.Objects.Watch {
		w := objectsfile.NewWatcher(cmd.Config.Objects.Path, objectsfile.DefaultDebounce, cmd.Logging.GetChildLogger("objects"))
		g.Go(func() error {
			return w.Run(ctx, func(s *objects.Store) error {
				_ = sdnotify.Reloading()

				// A rejected store has been logged and the current objects are kept.
				if err := e.RequestReload(ctx, s); err != nil && ctx.Err() != nil {
					return err
				}

				_ = sdnotify.Ready()

				return nil
			})
		})
	}

	err := g.Wait()
	_ = sdnotify.Stopping()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorw("Stopping icingacore due to an error", zap.Error(err))

		return ExitFailure
	}

	// Final state for the next start.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer saveCancel()

	if err := e.SaveRetention(saveCtx, time.Now()); err != nil {
		logger.Errorw("Can't save retention data", zap.Error(err))

		return ExitFailure
	}

	logger.Info("Stopped icingacore")

	return ExitSuccess
}
