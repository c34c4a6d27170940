// Package downtime manages scheduled maintenance windows of hosts and services.
package downtime

import (
	"fmt"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/pkg/errors"
	"time"
)

var (
	// ErrInvalidRange is returned if start is not before end or end has already passed.
	ErrInvalidRange = errors.New("invalid downtime range")

	// ErrUnknownTarget is returned if the host or service to schedule a downtime for doesn't exist.
	ErrUnknownTarget = errors.New("unknown downtime target")

	// ErrUnknownTrigger is returned if the triggering downtime doesn't exist.
	ErrUnknownTrigger = errors.New("unknown triggering downtime")

	// ErrInvalidDuration is returned for flexible downtimes without a positive duration.
	ErrInvalidDuration = errors.New("flexible downtime needs a positive duration")

	// ErrNotFound is returned if there is no downtime with the id in question.
	ErrNotFound = errors.New("downtime not found")
)

// Downtime is a maintenance window of a host or service.
type Downtime struct {
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

	IsInEffect    bool
	FlexStartTime time.Time
	CommentID     uint64

	// IncrementedPendingDowntime is set while the downtime
	// accounts for one of its target's pending flexible downtimes.
	IncrementedPendingDowntime bool
}

// StopTime returns when an active downtime ends.
func (d *Downtime) StopTime() time.Time {
	if d.Fixed {
		return d.EndTime
	}

	return d.FlexStartTime.Add(d.Duration)
}

// Request holds the parameters of a downtime to schedule.
type Request struct {
	Target      objects.Key
	StartTime   time.Time
	EndTime     time.Time
	Fixed       bool
	Duration    time.Duration
	TriggeredBy uint64
	Author      string
	Comment     string
}

// Filter selects downtimes for bulk deletion. Empty fields match everything.
// At least the host must be set.
type Filter struct {
	Host      string
	Service   string
	StartTime time.Time
	Comment   string
}

// Matches reports whether d is selected by f.
func (f Filter) Matches(d *Downtime) bool {
	if f.Host != "" && d.Target.Host != f.Host {
		return false
	}
	if f.Service != "" && d.Target.Service != f.Service {
		return false
	}
	if !f.StartTime.IsZero() && !d.StartTime.Equal(f.StartTime) {
		return false
	}
	if f.Comment != "" && d.Comment != f.Comment {
		return false
	}

	return true
}

const commentTimeLayout = "01-02-2006 15:04:05"

// explanation returns the text of the comment a downtime is announced with.
func explanation(d *Downtime) string {
	kind := d.Target.Kind()

	if d.Fixed {
		return fmt.Sprintf(
			"This %s has been scheduled for fixed downtime from %s to %s. "+
				"Notifications for the %s will not be sent out during that time period.",
			kind, d.StartTime.Format(commentTimeLayout), d.EndTime.Format(commentTimeLayout), kind,
		)
	}

	hours := int(d.Duration / time.Hour)
	minutes := int((d.Duration % time.Hour) / time.Minute)

	return fmt.Sprintf(
		"This %s has been scheduled for flexible downtime starting between %s and %s "+
			"and lasting for a period of %d hours and %d minutes. "+
			"Notifications for the %s will not be sent out during that time period.",
		kind, d.StartTime.Format(commentTimeLayout), d.EndTime.Format(commentTimeLayout), hours, minutes, kind,
	)
}
