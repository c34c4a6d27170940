// Package engine wires the event queue, the check scheduler, downtimes, flap detection
// and retention into the single-threaded main loop of the monitoring core.
package engine

import (
	"context"
	"github.com/google/uuid"
	"github.com/icinga/icingacore/pkg/broker"
	"github.com/icinga/icingacore/pkg/comments"
	"github.com/icinga/icingacore/pkg/dependency"
	"github.com/icinga/icingacore/pkg/downtime"
	"github.com/icinga/icingacore/pkg/events"
	"github.com/icinga/icingacore/pkg/extcmd"
	"github.com/icinga/icingacore/pkg/flapping"
	"github.com/icinga/icingacore/pkg/ids"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/notify"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/retention"
	"github.com/icinga/icingacore/pkg/scheduling"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"sync"
	"time"
)

// Options define the user configurable behavior of the engine.
type Options struct {
	Scheduling         scheduling.Options
	Flapping           flapping.Options
	CommandBufferSlots int `default:"4096"`
}

// Loggers hands out named component loggers, e.g. *logging.Logging.
type Loggers interface {
	GetChildLogger(name string) *logging.Logger
}

// Engine is the scheduler context: the object store, the event queue and
// everything mutating the runtime state of objects.
// Except for SubmitResult, Commands, Stats and RequestReload it must be used
// from a single goroutine, usually the one calling Run.
type Engine struct {
	options *Options

	store     *objects.Store
	queue     *events.Queue
	scheduler *scheduling.Scheduler
	downtimes *downtime.Manager
	flapping  *flapping.Detector
	comments  *comments.Manager
	ids       *ids.Allocator

	dispatcher broker.Dispatcher
	notifier   notify.Notifier
	executor   Executor
	retention  *retention.DB
	commands   *extcmd.Buffer

	instance     uuid.UUID
	programStart time.Time
	info         *scheduling.Info

	// dirty holds the objects whose status changed since the last status save.
	dirty map[objects.Key]struct{}
	// executing maps objects with a check in progress to the check's start.
	executing map[objects.Key]time.Time

	resultsMu sync.Mutex
	results   []objects.CheckResult

	reload chan reloadRequest

	statsMu sync.Mutex
	stats   Stats
	// handled counts all handled events for the periodic summary.
	handled uint64

	loggers Loggers
	logger  *logging.Logger
}

// New returns a new Engine for store.
func New(store *objects.Store, options *Options, dispatcher broker.Dispatcher, notifier notify.Notifier, loggers Loggers) *Engine {
	e := &Engine{
		options:    options,
		store:      store,
		queue:      events.NewQueue(),
		ids:        &ids.Allocator{},
		dispatcher: dispatcher,
		notifier:   notifier,
		commands:   extcmd.NewBuffer(options.CommandBufferSlots),
		instance:   uuid.New(),
		dirty:      map[objects.Key]struct{}{},
		executing:  map[objects.Key]time.Time{},
		reload:     make(chan reloadRequest, 1),
		stats:      Stats{Handled: map[events.Type]uint64{}},
		loggers:    loggers,
		logger:     loggers.GetChildLogger("engine"),
	}

	e.comments = comments.NewManager(&e.ids.Comments, dispatcher)
	e.scheduler = scheduling.NewScheduler(&options.Scheduling, store, e.queue, loggers.GetChildLogger("scheduler"))
	e.downtimes = downtime.NewManager(
		store, e.queue, e.comments, &e.ids.Downtimes, dispatcher, notifier, e, loggers.GetChildLogger("downtime"),
	)
	e.flapping = flapping.NewDetector(
		&options.Flapping, store, e.comments, dispatcher, notifier, e, loggers.GetChildLogger("flapping"),
	)

	return e
}

// SetExecutor sets the executor active checks are handed to.
// Without one, due checks are merely rescheduled.
func (e *Engine) SetExecutor(x Executor) {
	e.executor = x
}

// SetRetention sets the database runtime state is retained in.
func (e *Engine) SetRetention(db *retention.DB) {
	e.retention = db
}

// Instance returns the id of this engine instance.
func (e *Engine) Instance() uuid.UUID {
	return e.instance
}

// Commands returns the buffer external commands are submitted to.
func (e *Engine) Commands() *extcmd.Buffer {
	return e.commands
}

// Store returns the current object store.
func (e *Engine) Store() *objects.Store {
	return e.store
}

// Queue returns the event queue.
func (e *Engine) Queue() *events.Queue {
	return e.queue
}

// Downtimes returns the downtime manager.
func (e *Engine) Downtimes() *downtime.Manager {
	return e.downtimes
}

// Flapping returns the flap detector.
func (e *Engine) Flapping() *flapping.Detector {
	return e.flapping
}

// Comments returns the comment manager.
func (e *Engine) Comments() *comments.Manager {
	return e.comments
}

// Info returns the outcome of the last initial scheduling run.
func (e *Engine) Info() *scheduling.Info {
	return e.info
}

// Start restores the retained state, validates the dependencies and schedules the initial checks.
func (e *Engine) Start(ctx context.Context, now time.Time) error {
	e.programStart = now

	if err := e.restore(ctx, now); err != nil {
		return err
	}

	if err := dependency.Validate(e.store, e.loggers.GetChildLogger("dependency")); err != nil {
		return err
	}

	e.info = e.scheduler.Run(now)
	e.updateStats()

	return nil
}

// Run runs the main loop until ctx is canceled.
// Start must have been called before.
func (e *Engine) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	summary := time.NewTicker(e.logger.Interval())
	defer summary.Stop()

	progress := e.logger.Progress("Handled %d events in the last %s")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-summary.C:
			progress.Log(e.handled)

			continue
		case r := <-e.reload:
			err := e.Reload(r.store, time.Now())
			if err != nil {
				e.logger.Errorw("Can't apply new configuration, keeping the current one", zap.Error(err))
			}

			r.done <- err
		case <-timer.C:
			e.Step(ctx, time.Now())
		}

		wait := time.Second
		if next, ok := e.queue.Next(); ok {
			wait = min(time.Until(next), wait)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(max(wait, 0))
	}
}

// reloadRequest carries a store to Run, which reports the outcome of Reload on done.
type reloadRequest struct {
	store *objects.Store
	done  chan error
}

// RequestReload hands a freshly loaded store over to Run and waits until it has been applied.
// It returns the error of a rejected store or of ctx.
func (e *Engine) RequestReload(ctx context.Context, store *objects.Store) error {
	r := reloadRequest{store: store, done: make(chan error, 1)}

	select {
	case e.reload <- r:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-r.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Step handles every event due at now, re-queues recurring ones and returns how many were handled.
func (e *Engine) Step(ctx context.Context, now time.Time) int {
	n := 0

	for {
		ev := e.queue.Peek()
		if ev == nil || ev.RunTime.After(now) {
			break
		}

		e.queue.Pop()
		e.handle(ctx, ev, now)

		if ev.Recurring {
			e.queue.Schedule(ev.Next(now))
		}

		e.statsMu.Lock()
		e.stats.Handled[ev.Type]++
		e.statsMu.Unlock()

		e.handled++
		n++
	}

	if n > 0 {
		e.updateStats()
	}

	return n
}

func (e *Engine) handle(ctx context.Context, ev *events.Event, now time.Time) {
	switch ev.Type {
	case events.ServiceCheck, events.HostCheck:
		e.runCheck(ev, now)
	case events.ScheduledDowntime:
		e.downtimes.HandleScheduled(ev.DowntimeID, now)
	case events.ExpireDowntime:
		e.downtimes.HandleExpire(ev.DowntimeID, now)
	case events.CheckReaper:
		e.Reap(now)
	case events.CommandCheck:
		e.ProcessCommands(now)
	case events.RetentionSave:
		if err := e.SaveRetention(ctx, now); err != nil {
			e.logger.Errorw("Can't save retention data", zap.Error(err))
		}
	case events.StatusSave:
		if err := e.SaveStatus(ctx, now); err != nil {
			e.logger.Errorw("Can't save status data", zap.Error(err))
		}
	case events.ServiceFreshnessCheck:
		e.checkFreshness(true, now)
	case events.HostFreshnessCheck:
		e.checkFreshness(false, now)
	case events.OrphanCheck:
		e.checkOrphans(now)
	case events.RescheduleChecks:
		e.scheduler.AutoReschedule(now)
	case events.ExpireDowntimeSweep:
		e.downtimes.Sweep(now)
	default:
		e.logger.Debugw("Dropping event of unknown type", zap.Stringer("type", ev.Type))
	}
}

// ProcessCommands executes the buffered external commands.
func (e *Engine) ProcessCommands(now time.Time) {
	env := extcmd.Env{
		Store:     e.store,
		Downtimes: e.downtimes,
		Flapping:  e.flapping,
		Submit:    e.SubmitResult,
	}

	for _, c := range e.commands.Drain() {
		if err := extcmd.Execute(c, env, now); err != nil {
			e.logger.Warnw("Can't execute external command", zap.Stringer("command", c), zap.Error(err))
			continue
		}

		e.logger.Debugw("Executed external command", zap.Stringer("command", c))
	}
}

// UpdateStatus implements the objects.StatusUpdater interface.
// It marks c for the next status save and announces its status.
func (e *Engine) UpdateStatus(c *objects.Checkable) {
	e.dirty[c.Key] = struct{}{}

	e.dispatcher.Dispatch(&broker.StatusEvent{
		Target:                 c.Key,
		State:                  c.CurrentState,
		StateType:              c.StateType,
		CurrentAttempt:         c.CurrentAttempt,
		LastCheck:              c.LastCheck,
		NextCheck:              c.NextCheck,
		IsFlapping:             c.Flapping.IsFlapping,
		PercentStateChange:     c.PercentStateChange,
		ScheduledDowntimeDepth: c.ScheduledDowntimeDepth,
	})
}

// Assert interface compliance.
var _ objects.StatusUpdater = (*Engine)(nil)

// errNoStore is returned by Reload for a nil store.
var errNoStore = errors.New("no object store given")
