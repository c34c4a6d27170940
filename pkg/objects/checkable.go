package objects

import (
	"github.com/icinga/icingacore/pkg/types"
	"time"
)

// State is the numeric check state of a host or service.
type State uint8

const (
	HostUp          State = 0
	HostDown        State = 1
	HostUnreachable State = 2

	ServiceOK       State = 0
	ServiceWarning  State = 1
	ServiceCritical State = 2
	ServiceUnknown  State = 3
)

// MaxStateHistoryEntries is the size of the state history flap detection works on.
const MaxStateHistoryEntries = 21

// FlappingState is the flap detection bookkeeping of a Checkable.
// IsFlapping is true if and only if CommentID is not 0.
type FlappingState struct {
	IsFlapping    bool
	CommentID     uint64
	LowThreshold  float64
	HighThreshold float64

	// CheckRecoveryNotification defers a recovery notification until flapping stops.
	CheckRecoveryNotification bool

	History      [MaxStateHistoryEntries]State
	HistoryIndex int
	HistoryCount int
}

// Checkable is the part hosts and services share:
// check scheduling, flapping and downtime state.
type Checkable struct {
	Key Key

	CheckInterval      time.Duration
	RetryInterval      time.Duration
	CheckTimeout       time.Duration
	FreshnessThreshold time.Duration
	MaxAttempts        int
	CurrentAttempt     int
	CheckPeriod        string

	CurrentState  State
	LastHardState State
	StateType     types.StateType

	ChecksEnabled     bool
	ShouldBeScheduled bool
	IsExecuting       bool
	LastCheck         time.Time
	NextCheck         time.Time
	ExecutionTime     time.Duration
	Latency           time.Duration

	FlapDetectionEnabled bool
	PercentStateChange   float64
	Flapping             FlappingState

	PendingFlexDowntime    int
	ScheduledDowntimeDepth int
}

// Healthy reports whether the object is UP respectively OK.
func (c *Checkable) Healthy() bool {
	return c.CurrentState == 0
}

// Schedulable reports whether the object qualifies for active check scheduling at all.
func (c *Checkable) Schedulable() bool {
	return c.CheckInterval > 0 && c.ChecksEnabled
}

// NextInterval returns the interval after which the next regular check is due:
// the retry interval while in a soft problem state, the check interval otherwise.
func (c *Checkable) NextInterval() time.Duration {
	if c.CurrentState != 0 && c.StateType == types.StateSoft && c.RetryInterval > 0 {
		return c.RetryInterval
	}

	return c.CheckInterval
}

// Host is a monitored host.
type Host struct {
	Checkable

	Name        string
	DisplayName string
	Address     string
}

// NewHost returns a Host with the defaults object definitions start from.
func NewHost(name string) *Host {
	return &Host{
		Checkable: Checkable{
			Key:                  HostKey(name),
			MaxAttempts:          1,
			ChecksEnabled:        true,
			FlapDetectionEnabled: true,
			StateType:            types.StateHard,
		},
		Name: name,
	}
}

// Service is a monitored service bound to a host.
type Service struct {
	Checkable

	HostName    string
	Description string
	DisplayName string
}

// NewService returns a Service with the defaults object definitions start from.
func NewService(host, description string) *Service {
	return &Service{
		Checkable: Checkable{
			Key:                  ServiceKey(host, description),
			MaxAttempts:          1,
			ChecksEnabled:        true,
			FlapDetectionEnabled: true,
			StateType:            types.StateHard,
		},
		HostName:    host,
		Description: description,
	}
}

// StatusUpdater is told about hosts and services whose status changed.
type StatusUpdater interface {
	UpdateStatus(*Checkable)
}

// StatusUpdaterFunc adapts a function to the StatusUpdater interface.
type StatusUpdaterFunc func(*Checkable)

// UpdateStatus implements the StatusUpdater interface.
func (f StatusUpdaterFunc) UpdateStatus(c *Checkable) {
	f(c)
}

// CheckResult is the outcome of an active or passive check.
type CheckResult struct {
	Key           Key
	State         State
	Output        string
	Start         time.Time
	Finish        time.Time
	ExecutionTime time.Duration
	Latency       time.Duration
	Passive       bool
}
