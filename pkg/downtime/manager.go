package downtime

import (
	"github.com/icinga/icingacore/pkg/broker"
	"github.com/icinga/icingacore/pkg/comments"
	"github.com/icinga/icingacore/pkg/events"
	"github.com/icinga/icingacore/pkg/ids"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/notify"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/types"
	"github.com/pkg/errors"
	"slices"
	"sort"
	"time"
)

// Manager drives the downtime lifecycle: Scheduled, Active, Terminated.
// It is not safe for concurrent use.
type Manager struct {
	downtimes map[uint64]*Downtime

	store      *objects.Store
	queue      *events.Queue
	comments   *comments.Manager
	ids        *ids.Sequence
	dispatcher broker.Dispatcher
	notifier   notify.Notifier
	status     objects.StatusUpdater
	logger     *logging.Logger
}

// NewManager returns a new Manager.
func NewManager(
	store *objects.Store, queue *events.Queue, comments *comments.Manager, seq *ids.Sequence,
	dispatcher broker.Dispatcher, notifier notify.Notifier, status objects.StatusUpdater, logger *logging.Logger,
) *Manager {
	return &Manager{
		downtimes:  map[uint64]*Downtime{},
		store:      store,
		queue:      queue,
		comments:   comments,
		ids:        seq,
		dispatcher: dispatcher,
		notifier:   notifier,
		status:     status,
		logger:     logger,
	}
}

// SetStore replaces the object store, e.g. after a config reload. See Prune and Reconcile.
func (m *Manager) SetStore(store *objects.Store) {
	m.store = store
}

// Schedule validates r and creates a downtime from it.
// Only downtimes not triggered by another one are queued to start on their own.
func (m *Manager) Schedule(r Request, now time.Time) (uint64, error) {
	if !r.StartTime.Before(r.EndTime) {
		return 0, errors.Wrapf(ErrInvalidRange, "start %s is not before end %s", r.StartTime, r.EndTime)
	}

	if !r.EndTime.After(now) {
		return 0, errors.Wrapf(ErrInvalidRange, "end %s has already passed", r.EndTime)
	}

	if !r.Fixed && r.Duration <= 0 {
		return 0, ErrInvalidDuration
	}

	if m.store.Checkable(r.Target) == nil {
		return 0, errors.Wrapf(ErrUnknownTarget, "%s %q", r.Target.Kind(), r.Target)
	}

	if r.TriggeredBy != 0 {
		if _, ok := m.downtimes[r.TriggeredBy]; !ok {
			return 0, errors.Wrapf(ErrUnknownTrigger, "%d", r.TriggeredBy)
		}
	}

	d := &Downtime{
		ID:          m.ids.Next(),
		Target:      r.Target,
		EntryTime:   now,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Fixed:       r.Fixed,
		Duration:    r.Duration,
		TriggeredBy: r.TriggeredBy,
		Author:      r.Author,
		Comment:     r.Comment,
	}

	d.CommentID = m.comments.Add(d.Target, types.CommentDowntime, d.Author, explanation(d), false, now).ID
	m.downtimes[d.ID] = d

	m.announce(broker.DowntimeAdd, d)

	if d.TriggeredBy == 0 {
		m.enqueue(events.ScheduledDowntime, d, d.StartTime)
	}

	m.logger.Debugw("Scheduled downtime", "downtime_id", d.ID, "object", d.Target,
		"start", d.StartTime, "end", d.EndTime, "fixed", d.Fixed, "triggered_by", d.TriggeredBy)

	return d.ID, nil
}

// Restore adds a retained downtime, keeping its id and state, and queues its next transition.
// Call Reconcile once all downtimes are restored.
func (m *Manager) Restore(d *Downtime) {
	m.ids.Seed(d.ID)
	m.downtimes[d.ID] = d

	switch {
	case d.IsInEffect:
		m.enqueue(events.ScheduledDowntime, d, d.StopTime())
	case d.IncrementedPendingDowntime:
		m.enqueue(events.ExpireDowntime, d, d.EndTime.Add(time.Second))
	case d.TriggeredBy == 0:
		m.enqueue(events.ScheduledDowntime, d, d.StartTime)
	}

	m.announce(broker.DowntimeLoad, d)
}

// HandleScheduled handles a ScheduledDowntime event:
// it starts a downtime not yet in effect and stops one in effect.
func (m *Manager) HandleScheduled(id uint64, now time.Time) {
	d, ok := m.downtimes[id]
	if !ok {
		m.logger.Debugf("Dropping event of vanished downtime %d", id)
		return
	}

	if d.IsInEffect {
		m.deactivate(d, now, false)
	} else {
		m.activate(d, now, false)
	}
}

// HandleExpire handles an ExpireDowntime event: the downtime is discarded
// if it never became active and its window has passed.
func (m *Manager) HandleExpire(id uint64, now time.Time) {
	d, ok := m.downtimes[id]
	if !ok {
		m.logger.Debugf("Dropping expiry of vanished downtime %d", id)
		return
	}

	if !d.IsInEffect && d.EndTime.Before(now) {
		m.expire(d)
	}
}

// Sweep discards every downtime which never became active and whose window has passed.
// No notifications are sent for them.
func (m *Manager) Sweep(now time.Time) int {
	n := 0
	for _, d := range m.All() {
		if _, ok := m.downtimes[d.ID]; ok && !d.IsInEffect && !d.EndTime.After(now) {
			m.expire(d)
			n++
		}
	}

	return n
}

// Unschedule cancels the downtime and every downtime triggered by it.
func (m *Manager) Unschedule(id uint64, now time.Time) error {
	d, ok := m.downtimes[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%d", id)
	}

	m.deactivate(d, now, true)

	return nil
}

// UnscheduleMatching cancels every downtime f matches and returns how many were cancelled,
// not counting the ones cancelled as triggered ones.
func (m *Manager) UnscheduleMatching(f Filter, now time.Time) int {
	n := 0
	for _, d := range m.All() {
		if _, ok := m.downtimes[d.ID]; ok && f.Matches(d) {
			m.deactivate(d, now, true)
			n++
		}
	}

	return n
}

// CheckPendingFlex force-activates the first pending flexible downtime of target
// whose window contains now. Call it when target became unhealthy.
func (m *Manager) CheckPendingFlex(target objects.Key, now time.Time) bool {
	for _, d := range m.ForTarget(target) {
		if d.Fixed || d.IsInEffect || d.TriggeredBy != 0 {
			continue
		}

		if now.Before(d.StartTime) || now.After(d.EndTime) {
			continue
		}

		m.logger.Debugw("Target became unhealthy, activating flexible downtime", "downtime_id", d.ID, "object", target)
		m.activate(d, now, true)

		return true
	}

	return false
}

// activate starts d and everything it triggers.
func (m *Manager) activate(root *Downtime, now time.Time, forced bool) {
	work := []*Downtime{root}

	for len(work) > 0 {
		d := work[0]
		work = work[1:]

		if d.IsInEffect {
			continue
		}

		target := m.store.Checkable(d.Target)
		if target == nil {
			m.logger.Debugw("Can't start downtime of vanished object", "downtime_id", d.ID, "object", d.Target)
			continue
		}

		if !forced && d == root && !now.Before(d.EndTime) {
			m.logger.Debugw("Window of downtime passed before it could start", "downtime_id", d.ID, "object", d.Target)
			m.expire(d)

			continue
		}

		// Triggered downtimes follow their parent regardless of the target's state.
		if !d.Fixed && !forced && d == root && target.Healthy() {
			if !d.IncrementedPendingDowntime {
				d.IncrementedPendingDowntime = true
				target.PendingFlexDowntime++
				m.enqueue(events.ExpireDowntime, d, d.EndTime.Add(time.Second))
				m.status.UpdateStatus(target)
			}

			continue
		}

		d.IsInEffect = true
		d.FlexStartTime = now

		if target.ScheduledDowntimeDepth == 0 {
			m.notify(types.NotificationDowntimeStart, d)
		}

		target.ScheduledDowntimeDepth++

		// Drop a start event still queued after a forced start.
		m.dequeue(d, events.ScheduledDowntime)

		m.announce(broker.DowntimeStart, d)
		m.enqueue(events.ScheduledDowntime, d, d.StopTime())
		m.status.UpdateStatus(target)

		work = append(work, m.triggeredBy(d.ID)...)
	}
}

// deactivate stops or cancels d and everything it triggers and deletes them.
func (m *Manager) deactivate(root *Downtime, now time.Time, cancelled bool) {
	work := []*Downtime{root}

	for len(work) > 0 {
		d := work[0]
		work = work[1:]

		if _, ok := m.downtimes[d.ID]; !ok {
			continue
		}

		if target := m.store.Checkable(d.Target); target != nil {
			if d.IsInEffect {
				target.ScheduledDowntimeDepth--
				if target.ScheduledDowntimeDepth < 0 {
					m.logger.DPanicw("Scheduled downtime depth dropped below zero, clamping",
						"object", d.Target, "downtime_id", d.ID)
					target.ScheduledDowntimeDepth = 0
				}

				if target.ScheduledDowntimeDepth == 0 {
					if cancelled {
						m.notify(types.NotificationDowntimeRemoved, d)
					} else {
						m.notify(types.NotificationDowntimeEnd, d)
					}
				}

				if cancelled {
					m.announce(broker.DowntimeCancel, d)
				} else {
					m.announce(broker.DowntimeStop, d)
				}
			}

			m.releasePending(d, target)
			m.status.UpdateStatus(target)
		}

		d.IsInEffect = false
		work = append(work, m.triggeredBy(d.ID)...)

		m.delete(d)
	}
}

// expire discards d which never became active.
func (m *Manager) expire(d *Downtime) {
	if target := m.store.Checkable(d.Target); target != nil {
		m.releasePending(d, target)
		m.status.UpdateStatus(target)
	}

	m.logger.Debugw("Expiring downtime", "downtime_id", d.ID, "object", d.Target)
	m.delete(d)
}

func (m *Manager) releasePending(d *Downtime, target *objects.Checkable) {
	if !d.IncrementedPendingDowntime {
		return
	}

	d.IncrementedPendingDowntime = false
	target.PendingFlexDowntime--

	if target.PendingFlexDowntime < 0 {
		m.logger.DPanicw("Pending flexible downtime count dropped below zero, clamping", "object", d.Target)
		target.PendingFlexDowntime = 0
	}
}

// delete removes d, its comment and its queued events.
func (m *Manager) delete(d *Downtime) {
	if d.CommentID != 0 {
		m.comments.Delete(d.CommentID)
	}

	delete(m.downtimes, d.ID)
	m.dequeue(d)

	m.announce(broker.DowntimeDelete, d)
}

// Prune deletes the downtimes of objects which don't exist anymore.
func (m *Manager) Prune() int {
	n := 0
	for _, d := range m.All() {
		if m.store.Checkable(d.Target) == nil {
			m.logger.Infow("Deleting downtime of vanished object", "downtime_id", d.ID, "object", d.Target)
			m.delete(d)
			n++
		}
	}

	return n
}

// Reconcile recomputes every object's downtime depth and pending flexible downtime count
// from the downtimes and logs deviations.
func (m *Manager) Reconcile() {
	depth := map[objects.Key]int{}
	pending := map[objects.Key]int{}

	for _, d := range m.downtimes {
		if d.IsInEffect {
			depth[d.Target]++
		}
		if d.IncrementedPendingDowntime {
			pending[d.Target]++
		}
	}

	m.store.Checkables(func(c *objects.Checkable) {
		if c.ScheduledDowntimeDepth != depth[c.Key] || c.PendingFlexDowntime != pending[c.Key] {
			m.logger.Warnw("Correcting downtime counters",
				"object", c.Key,
				"depth", c.ScheduledDowntimeDepth, "expected_depth", depth[c.Key],
				"pending", c.PendingFlexDowntime, "expected_pending", pending[c.Key])

			c.ScheduledDowntimeDepth = depth[c.Key]
			c.PendingFlexDowntime = pending[c.Key]
		}
	})
}

// Get returns the downtime or nil.
func (m *Manager) Get(id uint64) *Downtime {
	return m.downtimes[id]
}

// Len returns the number of downtimes.
func (m *Manager) Len() int {
	return len(m.downtimes)
}

// Active returns the number of downtimes in effect.
func (m *Manager) Active() int {
	n := 0
	for _, d := range m.downtimes {
		if d.IsInEffect {
			n++
		}
	}

	return n
}

// All returns all downtimes ordered by id.
func (m *Manager) All() []*Downtime {
	all := make([]*Downtime, 0, len(m.downtimes))
	for _, d := range m.downtimes {
		all = append(all, d)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})

	return all
}

// ForTarget returns the downtimes of target ordered by id.
func (m *Manager) ForTarget(target objects.Key) []*Downtime {
	var matching []*Downtime
	for _, d := range m.All() {
		if d.Target == target {
			matching = append(matching, d)
		}
	}

	return matching
}

func (m *Manager) triggeredBy(id uint64) []*Downtime {
	var triggered []*Downtime
	for _, d := range m.All() {
		if d.TriggeredBy == id {
			triggered = append(triggered, d)
		}
	}

	return triggered
}

// dequeue removes the queued events of d, only the ones of the given types if any.
func (m *Manager) dequeue(d *Downtime, only ...events.Type) {
	for _, e := range m.queue.DowntimeEvents(d.ID) {
		if len(only) == 0 || slices.Contains(only, e.Type) {
			m.queue.RemoveEvent(e)
		}
	}
}

func (m *Manager) enqueue(t events.Type, d *Downtime, at time.Time) {
	m.queue.Schedule(&events.Event{Type: t, RunTime: at, Target: d.Target, DowntimeID: d.ID})
}

func (m *Manager) notify(t types.NotificationType, d *Downtime) {
	m.notifier.Notify(notify.Notification{Type: t, Target: d.Target, Author: d.Author, Text: d.Comment})
}

func (m *Manager) announce(action broker.DowntimeAction, d *Downtime) {
	m.dispatcher.Dispatch(&broker.DowntimeEvent{
		Action:      action,
		ID:          d.ID,
		Target:      d.Target,
		EntryTime:   d.EntryTime,
		StartTime:   d.StartTime,
		EndTime:     d.EndTime,
		Fixed:       d.Fixed,
		Duration:    d.Duration,
		TriggeredBy: d.TriggeredBy,
		Author:      d.Author,
		Comment:     d.Comment,
	})
}
