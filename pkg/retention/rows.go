package retention

import (
	"github.com/icinga/icingacore/pkg/comments"
	"github.com/icinga/icingacore/pkg/downtime"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/types"
	"time"
)

// ObjectState is the retained runtime state of a host or service.
type ObjectState struct {
	HostName               string          `db:"host_name"`
	ServiceName            string          `db:"service_name"`
	CurrentState           uint8           `db:"current_state"`
	LastHardState          uint8           `db:"last_hard_state"`
	StateType              types.StateType `db:"state_type"`
	CurrentAttempt         int             `db:"current_attempt"`
	LastCheck              types.UnixMilli `db:"last_check"`
	NextCheck              types.UnixMilli `db:"next_check"`
	ChecksEnabled          bool            `db:"checks_enabled"`
	FlapDetectionEnabled   bool            `db:"flap_detection_enabled"`
	IsFlapping             bool            `db:"is_flapping"`
	FlappingCommentID      uint64          `db:"flapping_comment_id"`
	PercentStateChange     float64         `db:"percent_state_change"`
	ScheduledDowntimeDepth int             `db:"scheduled_downtime_depth"`
	PendingFlexDowntime    int             `db:"pending_flex_downtime"`
	ExecutionTime          int64           `db:"execution_time"`
}

// TableName implements the TableNamer interface.
func (ObjectState) TableName() string {
	return "object_state"
}

// PrimaryKey implements the PrimaryKeyer interface.
func (ObjectState) PrimaryKey() []string {
	return []string{"host_name", "service_name"}
}

// NewObjectState captures the retained state of c.
func NewObjectState(c *objects.Checkable) ObjectState {
	return ObjectState{
		HostName:               c.Key.Host,
		ServiceName:            c.Key.Service,
		CurrentState:           uint8(c.CurrentState),
		LastHardState:          uint8(c.LastHardState),
		StateType:              c.StateType,
		CurrentAttempt:         c.CurrentAttempt,
		LastCheck:              types.UnixMilli(c.LastCheck),
		NextCheck:              types.UnixMilli(c.NextCheck),
		ChecksEnabled:          c.ChecksEnabled,
		FlapDetectionEnabled:   c.FlapDetectionEnabled,
		IsFlapping:             c.Flapping.IsFlapping,
		FlappingCommentID:      c.Flapping.CommentID,
		PercentStateChange:     c.PercentStateChange,
		ScheduledDowntimeDepth: c.ScheduledDowntimeDepth,
		PendingFlexDowntime:    c.PendingFlexDowntime,
		ExecutionTime:          c.ExecutionTime.Milliseconds(),
	}
}

// Key returns the Key of the object the state belongs to.
func (o ObjectState) Key() objects.Key {
	return objects.Key{Host: o.HostName, Service: o.ServiceName}
}

// Apply seeds c with the retained state.
func (o ObjectState) Apply(c *objects.Checkable) {
	c.CurrentState = objects.State(o.CurrentState)
	c.LastHardState = objects.State(o.LastHardState)
	c.StateType = o.StateType
	c.CurrentAttempt = o.CurrentAttempt
	c.LastCheck = o.LastCheck.Time()
	c.NextCheck = o.NextCheck.Time()
	c.ChecksEnabled = o.ChecksEnabled
	c.FlapDetectionEnabled = o.FlapDetectionEnabled
	c.Flapping.IsFlapping = o.IsFlapping
	c.Flapping.CommentID = o.FlappingCommentID
	c.PercentStateChange = o.PercentStateChange
	c.ScheduledDowntimeDepth = o.ScheduledDowntimeDepth
	c.PendingFlexDowntime = o.PendingFlexDowntime
	c.ExecutionTime = time.Duration(o.ExecutionTime) * time.Millisecond
}

// Comment is a retained comment.
type Comment struct {
	ID           uint64            `db:"id"`
	HostName     string            `db:"host_name"`
	ServiceName  string            `db:"service_name"`
	EntryType    types.CommentType `db:"entry_type"`
	EntryTime    types.UnixMilli   `db:"entry_time"`
	Author       string            `db:"author"`
	Text         string            `db:"text"`
	IsPersistent bool              `db:"is_persistent"`
}

// TableName implements the TableNamer interface.
func (Comment) TableName() string {
	return "comment"
}

// NewComment captures c.
func NewComment(c *comments.Comment) Comment {
	return Comment{
		ID:           c.ID,
		HostName:     c.Target.Host,
		ServiceName:  c.Target.Service,
		EntryType:    c.Type,
		EntryTime:    types.UnixMilli(c.EntryTime),
		Author:       c.Author,
		Text:         c.Text,
		IsPersistent: c.Persistent,
	}
}

// Comment converts the row back.
func (c Comment) Comment() *comments.Comment {
	return &comments.Comment{
		ID:         c.ID,
		Target:     objects.Key{Host: c.HostName, Service: c.ServiceName},
		Type:       c.EntryType,
		EntryTime:  c.EntryTime.Time(),
		Author:     c.Author,
		Text:       c.Text,
		Persistent: c.IsPersistent,
	}
}

// Downtime is a retained downtime.
type Downtime struct {
	ID                         uint64          `db:"id"`
	HostName                   string          `db:"host_name"`
	ServiceName                string          `db:"service_name"`
	EntryTime                  types.UnixMilli `db:"entry_time"`
	ScheduledStartTime         types.UnixMilli `db:"scheduled_start_time"`
	ScheduledEndTime           types.UnixMilli `db:"scheduled_end_time"`
	FlexibleStartTime          types.UnixMilli `db:"flexible_start_time"`
	IsFixed                    bool            `db:"is_fixed"`
	Duration                   int64           `db:"duration"`
	TriggeredByID              uint64          `db:"triggered_by_id"`
	Author                     string          `db:"author"`
	Comment                    string          `db:"comment"`
	IsInEffect                 bool            `db:"is_in_effect"`
	CommentID                  uint64          `db:"comment_id"`
	IncrementedPendingDowntime bool            `db:"incremented_pending_downtime"`
}

// TableName implements the TableNamer interface.
func (Downtime) TableName() string {
	return "downtime"
}

// NewDowntime captures d.
func NewDowntime(d *downtime.Downtime) Downtime {
	return Downtime{
		ID:                         d.ID,
		HostName:                   d.Target.Host,
		ServiceName:                d.Target.Service,
		EntryTime:                  types.UnixMilli(d.EntryTime),
		ScheduledStartTime:         types.UnixMilli(d.StartTime),
		ScheduledEndTime:           types.UnixMilli(d.EndTime),
		FlexibleStartTime:          types.UnixMilli(d.FlexStartTime),
		IsFixed:                    d.Fixed,
		Duration:                   d.Duration.Milliseconds(),
		TriggeredByID:              d.TriggeredBy,
		Author:                     d.Author,
		Comment:                    d.Comment,
		IsInEffect:                 d.IsInEffect,
		CommentID:                  d.CommentID,
		IncrementedPendingDowntime: d.IncrementedPendingDowntime,
	}
}

// Downtime converts the row back.
func (d Downtime) Downtime() *downtime.Downtime {
	return &downtime.Downtime{
		ID:                         d.ID,
		Target:                     objects.Key{Host: d.HostName, Service: d.ServiceName},
		EntryTime:                  d.EntryTime.Time(),
		StartTime:                  d.ScheduledStartTime.Time(),
		EndTime:                    d.ScheduledEndTime.Time(),
		FlexStartTime:              d.FlexibleStartTime.Time(),
		Fixed:                      d.IsFixed,
		Duration:                   time.Duration(d.Duration) * time.Millisecond,
		TriggeredBy:                d.TriggeredByID,
		Author:                     d.Author,
		Comment:                    d.Comment,
		IsInEffect:                 d.IsInEffect,
		CommentID:                  d.CommentID,
		IncrementedPendingDowntime: d.IncrementedPendingDowntime,
	}
}

// ProgramStatus is the engine-wide status row.
type ProgramStatus struct {
	ID                   int             `db:"id"`
	InstanceID           string          `db:"instance_id"`
	ProgramStart         types.UnixMilli `db:"program_start"`
	LastUpdate           types.UnixMilli `db:"last_update"`
	LastDowntimeID       uint64          `db:"last_downtime_id"`
	LastCommentID        uint64          `db:"last_comment_id"`
	FlapDetectionEnabled bool            `db:"flap_detection_enabled"`
}

// TableName implements the TableNamer interface.
func (ProgramStatus) TableName() string {
	return "program_status"
}

// PrimaryKey implements the PrimaryKeyer interface.
func (ProgramStatus) PrimaryKey() []string {
	return []string{"id"}
}

// Snapshot is everything retained across restarts.
type Snapshot struct {
	Program   *ProgramStatus
	Objects   []ObjectState
	Comments  []Comment
	Downtimes []Downtime
}
