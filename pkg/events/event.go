package events

import (
	"github.com/icinga/icingacore/pkg/objects"
	"strconv"
	"time"
)

// Type is the kind of a timed event and selects its handler.
type Type uint8

const (
	ServiceCheck Type = iota
	HostCheck
	ScheduledDowntime
	ExpireDowntime
	CheckReaper
	CommandCheck
	RetentionSave
	StatusSave
	ServiceFreshnessCheck
	HostFreshnessCheck
	OrphanCheck
	RescheduleChecks
	ExpireDowntimeSweep
)

// String implements the fmt.Stringer interface.
func (t Type) String() string {
	if v, ok := typeNames[t]; ok {
		return v
	}

	return strconv.FormatUint(uint64(t), 10)
}

var typeNames = map[Type]string{
	ServiceCheck:          "service_check",
	HostCheck:             "host_check",
	ScheduledDowntime:     "scheduled_downtime",
	ExpireDowntime:        "expire_downtime",
	CheckReaper:           "check_reaper",
	CommandCheck:          "command_check",
	RetentionSave:         "retention_save",
	StatusSave:            "status_save",
	ServiceFreshnessCheck: "service_freshness_check",
	HostFreshnessCheck:    "host_freshness_check",
	OrphanCheck:           "orphan_check",
	RescheduleChecks:      "reschedule_checks",
	ExpireDowntimeSweep:   "expire_downtime_sweep",
}

// Types returns all event types, e.g. for metric label initialization.
func Types() []Type {
	types := make([]Type, 0, len(typeNames))
	for t := ServiceCheck; t <= ExpireDowntimeSweep; t++ {
		types = append(types, t)
	}

	return types
}

// Priority selects the sequence an event is queued in.
type Priority uint8

const (
	Normal Priority = iota
	High
)

// String implements the fmt.Stringer interface.
func (p Priority) String() string {
	if p == High {
		return "high"
	}

	return "normal"
}

// Event is a scheduled action.
type Event struct {
	Type      Type
	RunTime   time.Time
	Recurring bool
	Interval  time.Duration
	Priority  Priority

	// Target is the host or service the event is about, if any.
	Target objects.Key

	// DowntimeID is the downtime the event is about, if any.
	DowntimeID uint64

	seq   uint64
	index int
}

// Next returns the recurring follow-up of e relative to now.
func (e *Event) Next(now time.Time) *Event {
	return &Event{
		Type:       e.Type,
		RunTime:    now.Add(e.Interval),
		Recurring:  true,
		Interval:   e.Interval,
		Priority:   e.Priority,
		Target:     e.Target,
		DowntimeID: e.DowntimeID,
	}
}
