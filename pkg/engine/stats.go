package engine

import (
	"github.com/icinga/icingacore/pkg/events"
	"github.com/icinga/icingacore/pkg/objects"
	"maps"
)

// Stats is a point-in-time summary of the engine for metrics.
type Stats struct {
	QueuedNormal      int
	QueuedHigh        int
	ScheduledHosts    int
	ScheduledServices int
	ActiveDowntimes   int
	FlappingObjects   int
	PendingResults    int
	PendingCommands   int
	Handled           map[events.Type]uint64
}

// Stats returns the statistics as of the last handled events.
// It is safe for concurrent use.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	s := e.stats
	s.Handled = maps.Clone(e.stats.Handled)
	e.statsMu.Unlock()

	e.resultsMu.Lock()
	s.PendingResults = len(e.results)
	e.resultsMu.Unlock()

	s.PendingCommands = e.commands.Len()

	return s
}

func (e *Engine) updateStats() {
	var hosts, services, flapping int
	e.store.Checkables(func(c *objects.Checkable) {
		if c.ShouldBeScheduled {
			if c.Key.IsService() {
				services++
			} else {
				hosts++
			}
		}

		if c.Flapping.IsFlapping {
			flapping++
		}
	})

	active := e.downtimes.Active()

	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.stats.QueuedNormal = e.queue.LenOf(events.Normal)
	e.stats.QueuedHigh = e.queue.LenOf(events.High)
	e.stats.ScheduledHosts = hosts
	e.stats.ScheduledServices = services
	e.stats.ActiveDowntimes = active
	e.stats.FlappingObjects = flapping
}
