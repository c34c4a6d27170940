package scheduling

import (
	"github.com/icinga/icingacore/pkg/events"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/objects"
	"math"
	"time"
)

// Scheduler spreads the checks of all monitored objects over time
// and keeps them in the event queue.
type Scheduler struct {
	options *Options
	store   *objects.Store
	queue   *events.Queue
	logger  *logging.Logger
}

// NewScheduler returns a new Scheduler.
func NewScheduler(options *Options, store *objects.Store, queue *events.Queue, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		options: options,
		store:   store,
		queue:   queue,
		logger:  logger,
	}
}

// Run computes the initial next_check of every object and enqueues the check events
// and the recurring housekeeping events.
// Objects which already hold a next_check after now keep it.
func (s *Scheduler) Run(now time.Time) *Info {
	info := &Info{}

	s.collect(now, info)

	info.ServiceInterCheckDelay = interCheckDelay(
		s.options.ServiceDelayMethod, s.options.ServiceDelay, s.options.MaxServiceCheckSpread,
		info.ServiceCheckIntervalTotal, info.TotalScheduledServices,
	)
	info.HostInterCheckDelay = interCheckDelay(
		s.options.HostDelayMethod, s.options.HostDelay, s.options.MaxHostCheckSpread,
		info.HostCheckIntervalTotal, info.TotalScheduledHosts,
	)

	if info.TotalHosts > 0 {
		info.AverageServicesPerHost = float64(info.TotalScheduledServices) / float64(info.TotalHosts)
	}

	if s.options.InterleaveMethod == InterleaveUser {
		info.InterleaveFactor = s.options.InterleaveFactor
	} else {
		info.InterleaveFactor = int(math.Ceil(info.AverageServicesPerHost))
		if info.InterleaveFactor < 1 {
			info.InterleaveFactor = 1
		}
	}

	if info.InterleaveFactor > 0 {
		info.TotalInterleaveBlocks = int(math.Ceil(float64(info.TotalScheduledServices) / float64(info.InterleaveFactor)))
	} else {
		info.TotalInterleaveBlocks = info.TotalScheduledServices
	}

	s.scheduleServices(now, info)
	s.scheduleHosts(now, info)

	s.store.Checkables(func(c *objects.Checkable) {
		if c.ShouldBeScheduled {
			s.queue.Schedule(&events.Event{Type: checkEventType(c.Key), RunTime: c.NextCheck, Target: c.Key})
		}
	})

	s.ScheduleHousekeeping(now)

	s.logger.Infow("Scheduled initial checks", "info", info)

	return info
}

// collect decides should_be_scheduled for every object and accumulates the counters.
func (s *Scheduler) collect(now time.Time, info *Info) {
	for _, svc := range s.store.Services() {
		info.TotalServices++

		if !s.qualifies(&svc.Checkable, now) {
			continue
		}

		info.TotalScheduledServices++
		info.ServiceCheckIntervalTotal += svc.CheckInterval
		info.AverageServiceExecutionTime = average(info.AverageServiceExecutionTime, info.TotalScheduledServices, svc.ExecutionTime)
	}

	for _, h := range s.store.Hosts() {
		info.TotalHosts++

		if !s.qualifies(&h.Checkable, now) {
			continue
		}

		info.TotalScheduledHosts++
		info.HostCheckIntervalTotal += h.CheckInterval
		info.AverageHostExecutionTime = average(info.AverageHostExecutionTime, info.TotalScheduledHosts, h.ExecutionTime)
	}

	if info.TotalScheduledServices > 0 {
		info.AverageServiceCheckInterval = info.ServiceCheckIntervalTotal / time.Duration(info.TotalScheduledServices)
	}
	if info.TotalScheduledHosts > 0 {
		info.AverageHostCheckInterval = info.HostCheckIntervalTotal / time.Duration(info.TotalScheduledHosts)
	}
}

func (s *Scheduler) qualifies(c *objects.Checkable, now time.Time) bool {
	c.ShouldBeScheduled = false

	if !c.Schedulable() {
		return false
	}

	if _, ok := s.store.CheckPeriod(c).NextValidTime(now); !ok {
		s.logger.Warnf("Check period %q of %s %q has no valid time in the future, not scheduling checks",
			c.CheckPeriod, c.Key.Kind(), c.Key)

		return false
	}

	c.ShouldBeScheduled = true

	return true
}

// scheduleServices interleaves the services in round-robin blocks of InterleaveFactor services.
func (s *Scheduler) scheduleServices(now time.Time, info *Info) {
	block, index := 0, 0

	for _, svc := range s.store.Services() {
		c := &svc.Checkable
		if !c.ShouldBeScheduled {
			continue
		}

		index++
		if index > info.InterleaveFactor && info.InterleaveFactor > 0 {
			block++
			index = 1
		}

		if !c.NextCheck.After(now) {
			mult := block + index*info.TotalInterleaveBlocks
			c.NextCheck = s.snap(c, now.Add(time.Duration(mult)*info.ServiceInterCheckDelay))
		}

		info.FirstServiceCheck, info.LastServiceCheck = bounds(info.FirstServiceCheck, info.LastServiceCheck, c.NextCheck)
	}
}

// scheduleHosts spreads the hosts by the host inter-check delay without interleaving.
func (s *Scheduler) scheduleHosts(now time.Time, info *Info) {
	n := 0

	for _, h := range s.store.Hosts() {
		c := &h.Checkable
		if !c.ShouldBeScheduled {
			continue
		}

		if !c.NextCheck.After(now) {
			c.NextCheck = s.snap(c, now.Add(time.Duration(n)*info.HostInterCheckDelay))
		}

		n++

		info.FirstHostCheck, info.LastHostCheck = bounds(info.FirstHostCheck, info.LastHostCheck, c.NextCheck)
	}
}

// snap moves t forward to the next valid time of c's check period.
// If there is none, t is kept and c is excluded from scheduling.
func (s *Scheduler) snap(c *objects.Checkable, t time.Time) time.Time {
	tp := s.store.CheckPeriod(c)
	if tp.Contains(t) {
		return t
	}

	next, ok := tp.NextValidTime(t)
	if !ok {
		c.ShouldBeScheduled = false
		s.logger.Warnf("Check period %q of %s %q has no valid time after %s, not scheduling checks",
			c.CheckPeriod, c.Key.Kind(), c.Key, t)

		return t
	}

	return next
}

// Reschedule enqueues the next regular check of c relative to from
// and reports whether there is one.
func (s *Scheduler) Reschedule(c *objects.Checkable, from time.Time) bool {
	if !c.Schedulable() {
		c.ShouldBeScheduled = false
		return false
	}

	c.ShouldBeScheduled = true
	c.NextCheck = s.snap(c, from.Add(c.NextInterval()))
	if !c.ShouldBeScheduled {
		return false
	}

	s.queue.Schedule(&events.Event{Type: checkEventType(c.Key), RunTime: c.NextCheck, Target: c.Key})

	return true
}

// ScheduleNow enqueues an immediate check of c unless one is already queued before now.
func (s *Scheduler) ScheduleNow(c *objects.Checkable, now time.Time) {
	if e := s.queue.CheckEvent(c.Key); e != nil {
		if e.RunTime.After(now) {
			s.queue.Reschedule(e, now)
			c.NextCheck = now
		}

		return
	}

	c.NextCheck = now
	c.ShouldBeScheduled = true
	s.queue.Schedule(&events.Event{Type: checkEventType(c.Key), RunTime: now, Target: c.Key})
}

// AutoReschedule spreads the check events due within the auto rescheduling window evenly across it.
func (s *Scheduler) AutoReschedule(now time.Time) int {
	end := now.Add(s.options.AutoRescheduleWindow)

	due := s.queue.Select(func(e *events.Event) bool {
		return (e.Type == events.ServiceCheck || e.Type == events.HostCheck) && e.RunTime.Before(end)
	})

	if len(due) == 0 {
		return 0
	}

	delay := s.options.AutoRescheduleWindow / time.Duration(len(due))
	for i, e := range due {
		t := now.Add(time.Duration(i) * delay)
		if c := s.store.Checkable(e.Target); c != nil {
			t = s.snap(c, t)
			c.NextCheck = t
		}

		s.queue.Reschedule(e, t)
	}

	s.logger.Debugf("Auto-rescheduled %d checks over %s", len(due), s.options.AutoRescheduleWindow)

	return len(due)
}

// ScheduleHousekeeping enqueues the recurring housekeeping events.
func (s *Scheduler) ScheduleHousekeeping(now time.Time) {
	housekeeping := []struct {
		typ      events.Type
		enabled  bool
		interval time.Duration
		priority events.Priority
	}{
		{events.CheckReaper, true, s.options.CheckReaperInterval, events.High},
		{events.CommandCheck, true, s.options.CommandCheckInterval, events.High},
		{events.ServiceFreshnessCheck, s.options.CheckServiceFreshness, s.options.ServiceFreshnessInterval, events.Normal},
		{events.HostFreshnessCheck, s.options.CheckHostFreshness, s.options.HostFreshnessInterval, events.Normal},
		{events.OrphanCheck, s.options.CheckOrphans, s.options.OrphanCheckInterval, events.Normal},
		{events.RescheduleChecks, s.options.AutoReschedule, s.options.AutoRescheduleInterval, events.Normal},
		{events.RetentionSave, true, s.options.RetentionSaveInterval, events.Normal},
		{events.StatusSave, true, s.options.StatusSaveInterval, events.Normal},
		{events.ExpireDowntimeSweep, true, s.options.DowntimeExpireInterval, events.Normal},
	}

	for _, h := range housekeeping {
		if !h.enabled || h.interval <= 0 {
			continue
		}

		s.queue.Schedule(&events.Event{
			Type:      h.typ,
			RunTime:   now.Add(h.interval),
			Recurring: true,
			Interval:  h.interval,
			Priority:  h.priority,
		})
	}
}

func interCheckDelay(method DelayMethod, user, maxSpread, intervalTotal time.Duration, scheduled int) time.Duration {
	if scheduled == 0 {
		return 0
	}

	switch method {
	case DelayNone:
		return 0
	case DelayDumb:
		return time.Second
	case DelayUser:
		return user
	default:
		n := time.Duration(scheduled)
		return min(intervalTotal/n/n, maxSpread/n)
	}
}

func checkEventType(k objects.Key) events.Type {
	if k.IsService() {
		return events.ServiceCheck
	}

	return events.HostCheck
}

func bounds(first, last, t time.Time) (time.Time, time.Time) {
	if first.IsZero() || t.Before(first) {
		first = t
	}
	if last.IsZero() || t.After(last) {
		last = t
	}

	return first, last
}
