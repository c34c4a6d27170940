package broker

import (
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/types"
	"time"
)

// Payload is one of the event variants the engine announces:
// *DowntimeEvent, *FlappingEvent, *CommentEvent, *StatusEvent or *CheckEvent.
type Payload interface {
	// Kind names the variant, e.g. "downtime".
	Kind() string

	payload()
}

// DowntimeAction is what happened to a downtime.
type DowntimeAction uint8

const (
	DowntimeAdd DowntimeAction = iota
	DowntimeLoad
	DowntimeStart
	DowntimeStop
	DowntimeCancel
	DowntimeDelete
)

// String implements the fmt.Stringer interface.
func (a DowntimeAction) String() string {
	return [...]string{"add", "load", "start", "stop", "cancel", "delete"}[a]
}

// DowntimeEvent announces a downtime lifecycle transition.
type DowntimeEvent struct {
	Action      DowntimeAction
	ID          uint64
	Target      objects.Key
	EntryTime   time.Time
	StartTime   time.Time
	EndTime     time.Time
	Fixed       bool
	Duration    time.Duration
	TriggeredBy uint64
	Author      string
	Comment     string
}

// FlappingAction is a flapping transition.
type FlappingAction uint8

const (
	FlappingStart FlappingAction = iota
	FlappingStop
)

// String implements the fmt.Stringer interface.
func (a FlappingAction) String() string {
	if a == FlappingStop {
		return "stop"
	}

	return "start"
}

// FlappingReason tells why flapping stopped.
type FlappingReason uint8

const (
	FlappingNormal FlappingReason = iota
	FlappingDisabled
)

// String implements the fmt.Stringer interface.
func (r FlappingReason) String() string {
	if r == FlappingDisabled {
		return "disabled"
	}

	return "normal"
}

// FlappingEvent announces an object starting or stopping to flap.
type FlappingEvent struct {
	Action             FlappingAction
	Reason             FlappingReason
	Target             objects.Key
	PercentStateChange float64
	LowThreshold       float64
	HighThreshold      float64
	CommentID          uint64
}

// CommentAction is what happened to a comment.
type CommentAction uint8

const (
	CommentAdd CommentAction = iota
	CommentDelete
)

// String implements the fmt.Stringer interface.
func (a CommentAction) String() string {
	if a == CommentDelete {
		return "delete"
	}

	return "add"
}

// CommentEvent announces a comment being added or deleted.
type CommentEvent struct {
	Action     CommentAction
	ID         uint64
	Target     objects.Key
	Type       types.CommentType
	EntryTime  time.Time
	Author     string
	Text       string
	Persistent bool
}

// StatusEvent announces updated status of a host, a service or, with a zero Target, the program.
type StatusEvent struct {
	Target                 objects.Key
	State                  objects.State
	StateType              types.StateType
	CurrentAttempt         int
	LastCheck              time.Time
	NextCheck              time.Time
	IsFlapping             bool
	PercentStateChange     float64
	ScheduledDowntimeDepth int
}

// CheckPhase is the stage of a check a CheckEvent refers to.
type CheckPhase uint8

const (
	// CheckInitiate is dispatched before a check runs. Sinks may override it.
	CheckInitiate CheckPhase = iota
	CheckProcessed
)

// String implements the fmt.Stringer interface.
func (p CheckPhase) String() string {
	if p == CheckProcessed {
		return "processed"
	}

	return "initiate"
}

// CheckEvent announces a check being started or its result being processed.
type CheckEvent struct {
	Phase         CheckPhase
	Target        objects.Key
	State         objects.State
	StateType     types.StateType
	Output        string
	ExecutionTime time.Duration
	Latency       time.Duration
}

func (*DowntimeEvent) Kind() string { return "downtime" }
func (*FlappingEvent) Kind() string { return "flapping" }
func (*CommentEvent) Kind() string  { return "comment" }
func (*StatusEvent) Kind() string   { return "status" }
func (*CheckEvent) Kind() string    { return "check" }

func (*DowntimeEvent) payload() {}
func (*FlappingEvent) payload() {}
func (*CommentEvent) payload()  {}
func (*StatusEvent) payload()   {}
func (*CheckEvent) payload()    {}

// Assert interface compliance.
var (
	_ Payload = (*DowntimeEvent)(nil)
	_ Payload = (*FlappingEvent)(nil)
	_ Payload = (*CommentEvent)(nil)
	_ Payload = (*StatusEvent)(nil)
	_ Payload = (*CheckEvent)(nil)
)
