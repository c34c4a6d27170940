package engine

import (
	"github.com/icinga/icingacore/pkg/dependency"
	"github.com/icinga/icingacore/pkg/events"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/scheduling"
	"go.uber.org/zap"
	"time"
)

// Reload replaces the object store. The runtime state of objects present in both stores
// carries over, downtimes and comments of vanished objects are dropped and all checks are scheduled anew.
// If the new store has circular dependencies, the current one is kept.
func (e *Engine) Reload(store *objects.Store, now time.Time) error {
	if store == nil {
		return errNoStore
	}

	if err := dependency.Validate(store, e.loggers.GetChildLogger("dependency")); err != nil {
		return err
	}

	kept := 0
	store.Checkables(func(c *objects.Checkable) {
		if old := e.store.Checkable(c.Key); old != nil {
			carryOver(c, old)
			kept++
		}
	})

	for k := range e.executing {
		if store.Checkable(k) == nil {
			delete(e.executing, k)
		}
	}

	for k := range e.dirty {
		if store.Checkable(k) == nil {
			delete(e.dirty, k)
		}
	}

	e.store = store
	e.scheduler = scheduling.NewScheduler(&e.options.Scheduling, store, e.queue, e.loggers.GetChildLogger("scheduler"))
	e.downtimes.SetStore(store)
	e.flapping.SetStore(store)

	e.queue.RemoveAll(func(ev *events.Event) bool {
		return ev.Type != events.ScheduledDowntime && ev.Type != events.ExpireDowntime
	})

	e.pruneComments()
	e.downtimes.Prune()
	e.downtimes.Reconcile()

	e.info = e.scheduler.Run(now)
	e.updateStats()

	e.logger.Infow("Reloaded configuration", zap.Int("kept_objects", kept))

	return nil
}

// carryOver copies the runtime state of old to c.
func carryOver(c, old *objects.Checkable) {
	c.CurrentState = old.CurrentState
	c.LastHardState = old.LastHardState
	c.StateType = old.StateType
	c.CurrentAttempt = old.CurrentAttempt
	c.IsExecuting = old.IsExecuting
	c.LastCheck = old.LastCheck
	c.NextCheck = old.NextCheck
	c.ExecutionTime = old.ExecutionTime
	c.Latency = old.Latency
	c.ChecksEnabled = old.ChecksEnabled
	c.FlapDetectionEnabled = old.FlapDetectionEnabled
	c.PercentStateChange = old.PercentStateChange
	c.Flapping.IsFlapping = old.Flapping.IsFlapping
	c.Flapping.CommentID = old.Flapping.CommentID
	c.Flapping.CheckRecoveryNotification = old.Flapping.CheckRecoveryNotification
	c.Flapping.History = old.Flapping.History
	c.Flapping.HistoryIndex = old.Flapping.HistoryIndex
	c.Flapping.HistoryCount = old.Flapping.HistoryCount
	c.PendingFlexDowntime = old.PendingFlexDowntime
	c.ScheduledDowntimeDepth = old.ScheduledDowntimeDepth
}
