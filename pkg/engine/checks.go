package engine

import (
	"github.com/icinga/icingacore/pkg/broker"
	"github.com/icinga/icingacore/pkg/dependency"
	"github.com/icinga/icingacore/pkg/downtime"
	"github.com/icinga/icingacore/pkg/events"
	"github.com/icinga/icingacore/pkg/flapping"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/types"
	"go.uber.org/zap"
	"time"
)

// defaultCheckTimeout applies to objects without a check timeout.
const defaultCheckTimeout = time.Minute

// Check is an active check handed to an Executor.
type Check struct {
	Key         objects.Key
	Timeout     time.Duration
	ScheduledAt time.Time
}

// Executor runs active checks. Execute must not block;
// results are submitted later via Engine.SubmitResult.
type Executor interface {
	Execute(Check)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(Check)

// Execute implements the Executor interface.
func (f ExecutorFunc) Execute(c Check) {
	f(c)
}

// runCheck handles a ServiceCheck or HostCheck event.
// Checks which are not run are rescheduled right away.
// Executed ones are rescheduled once their result is processed.
func (e *Engine) runCheck(ev *events.Event, now time.Time) {
	c := e.store.Checkable(ev.Target)
	if c == nil {
		e.logger.Debugw("Dropping check event of unknown object", zap.Stringer("object", ev.Target))
		return
	}

	if c.IsExecuting {
		e.logger.Debugw("Check is already executing", zap.Stringer("object", c.Key))
		return
	}

	if !c.ChecksEnabled {
		c.ShouldBeScheduled = false
		return
	}

	if !e.store.CheckPeriod(c).Contains(now) {
		e.logger.Debugw("Check is outside of its check period, rescheduling", zap.Stringer("object", c.Key))
		e.scheduler.Reschedule(c, now)

		return
	}

	if e.dispatcher.Dispatch(&broker.CheckEvent{Phase: broker.CheckInitiate, Target: c.Key}) == broker.Override {
		e.logger.Debugw("Check was overridden by a broker sink, rescheduling", zap.Stringer("object", c.Key))
		e.scheduler.Reschedule(c, now)

		return
	}

	if dependency.Check(e.store, c.Key, types.DependencyExecution, now) == dependency.Failed {
		e.logger.Debugw("Execution dependencies failed, rescheduling", zap.Stringer("object", c.Key))
		e.scheduler.Reschedule(c, now)

		return
	}

	if e.executor == nil {
		e.scheduler.Reschedule(c, now)
		return
	}

	c.IsExecuting = true
	c.Latency = now.Sub(ev.RunTime)
	e.executing[c.Key] = now

	timeout := c.CheckTimeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}

	e.executor.Execute(Check{Key: c.Key, Timeout: timeout, ScheduledAt: ev.RunTime})
}

// SubmitResult buffers a check result for the next check reaper event.
// It is safe for concurrent use.
func (e *Engine) SubmitResult(cr objects.CheckResult) {
	e.resultsMu.Lock()
	defer e.resultsMu.Unlock()

	e.results = append(e.results, cr)
}

// Reap processes all buffered check results and returns how many there were.
func (e *Engine) Reap(now time.Time) int {
	e.resultsMu.Lock()
	results := e.results
	e.results = nil
	e.resultsMu.Unlock()

	for _, cr := range results {
		e.ProcessResult(cr, now)
	}

	return len(results)
}

// ProcessResult applies cr to its object: state, attempts and state type,
// flexible downtime activation, flap detection and, for active checks, the next check.
func (e *Engine) ProcessResult(cr objects.CheckResult, now time.Time) {
	c := e.store.Checkable(cr.Key)
	if c == nil {
		e.logger.Debugw("Dropping check result of unknown object", zap.Stringer("object", cr.Key))
		return
	}

	reschedule := false
	if !cr.Passive {
		reschedule = c.IsExecuting
		c.IsExecuting = false
		delete(e.executing, c.Key)
	}

	wasHealthy := c.Healthy()

	c.LastCheck = cr.Finish
	if c.LastCheck.IsZero() {
		c.LastCheck = now
	}
	c.ExecutionTime = cr.ExecutionTime
	if cr.Passive {
		c.Latency = cr.Latency
	}

	applyState(c, cr.State)

	if wasHealthy && !c.Healthy() {
		e.downtimes.CheckPendingFlex(c.Key, now)
	}

	flapping.Record(c, c.CurrentState, c.StateType)
	e.flapping.Check(c, now)

	e.dispatcher.Dispatch(&broker.CheckEvent{
		Phase:         broker.CheckProcessed,
		Target:        c.Key,
		State:         c.CurrentState,
		StateType:     c.StateType,
		Output:        cr.Output,
		ExecutionTime: cr.ExecutionTime,
		Latency:       c.Latency,
	})

	if reschedule {
		from := cr.Start
		if from.IsZero() {
			from = now
		}

		e.scheduler.Reschedule(c, from)
	}

	e.UpdateStatus(c)
}

// applyState moves c to state, counting attempts until the state becomes hard.
func applyState(c *objects.Checkable, state objects.State) {
	maxAttempts := max(c.MaxAttempts, 1)

	switch {
	case state == 0:
		c.CurrentAttempt = 1
		c.StateType = types.StateHard
		c.LastHardState = 0
	default:
		switch {
		case c.CurrentState == 0:
			c.CurrentAttempt = 1
		case c.StateType == types.StateSoft && c.CurrentAttempt < maxAttempts:
			c.CurrentAttempt++
		}

		if c.CurrentAttempt >= maxAttempts {
			c.StateType = types.StateHard
			c.LastHardState = state
		} else {
			c.StateType = types.StateSoft
		}
	}

	c.CurrentState = state
}

// checkFreshness schedules an immediate check of every stale service respectively host.
func (e *Engine) checkFreshness(services bool, now time.Time) {
	check := func(c *objects.Checkable) {
		if c.FreshnessThreshold <= 0 || c.IsExecuting || !c.ChecksEnabled {
			return
		}

		last := c.LastCheck
		if last.Before(e.programStart) {
			last = e.programStart
		}

		if age := now.Sub(last); age > c.FreshnessThreshold {
			e.logger.Warnw("Check result is stale, forcing an immediate check",
				zap.Stringer("object", c.Key), zap.Duration("age", age), zap.Duration("threshold", c.FreshnessThreshold))
			e.scheduler.ScheduleNow(c, now)
		}
	}

	if services {
		for _, svc := range e.store.Services() {
			check(&svc.Checkable)
		}
	} else {
		for _, h := range e.store.Hosts() {
			check(&h.Checkable)
		}
	}
}

// checkOrphans reschedules checks whose results have been missing for too long.
func (e *Engine) checkOrphans(now time.Time) {
	for k, since := range e.executing {
		c := e.store.Checkable(k)
		if c == nil {
			delete(e.executing, k)
			continue
		}

		timeout := c.CheckTimeout
		if timeout <= 0 {
			timeout = defaultCheckTimeout
		}

		if now.Sub(since) <= timeout+e.options.Scheduling.CheckReaperInterval+e.options.Scheduling.OrphanSlack {
			continue
		}

		e.logger.Warnw("Check result is missing, rescheduling orphaned check",
			zap.Stringer("object", k), zap.Time("started", since))

		c.IsExecuting = false
		delete(e.executing, k)
		e.scheduler.ScheduleNow(c, now)
	}
}

// ScheduleDowntime schedules a downtime and returns its id.
func (e *Engine) ScheduleDowntime(r downtime.Request, now time.Time) (uint64, error) {
	return e.downtimes.Schedule(r, now)
}
