// Package flapping detects hosts and services oscillating between states
// and handles them starting and stopping to flap.
package flapping

import (
	"fmt"
	"github.com/icinga/icingacore/pkg/broker"
	"github.com/icinga/icingacore/pkg/comments"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/notify"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/types"
	"github.com/pkg/errors"
	"time"
)

// Options define user configurable flap detection options.
type Options struct {
	Enabled              bool    `yaml:"enabled"                default:"true"`
	LowServiceThreshold  float64 `yaml:"low_service_threshold"  default:"20"`
	HighServiceThreshold float64 `yaml:"high_service_threshold" default:"30"`
	LowHostThreshold     float64 `yaml:"low_host_threshold"     default:"20"`
	HighHostThreshold    float64 `yaml:"high_host_threshold"    default:"30"`
}

// Validate checks constraints in the supplied flapping options and returns an error if they are violated.
func (o *Options) Validate() error {
	for _, t := range [][2]float64{
		{o.LowServiceThreshold, o.HighServiceThreshold},
		{o.LowHostThreshold, o.HighHostThreshold},
	} {
		if t[0] < 0 || t[1] > 100 || t[0] > t[1] {
			return errors.Errorf("flapping thresholds %g/%g must satisfy 0 <= low <= high <= 100", t[0], t[1])
		}
	}

	return nil
}

// Author is the author of flapping comments.
const Author = "(Icinga Process)"

// Detector owns the transition effects of objects starting and stopping to flap.
// It is not safe for concurrent use.
type Detector struct {
	options *Options

	store      *objects.Store
	comments   *comments.Manager
	dispatcher broker.Dispatcher
	notifier   notify.Notifier
	status     objects.StatusUpdater
	logger     *logging.Logger
}

// NewDetector returns a new Detector.
func NewDetector(
	options *Options, store *objects.Store, comments *comments.Manager,
	dispatcher broker.Dispatcher, notifier notify.Notifier, status objects.StatusUpdater, logger *logging.Logger,
) *Detector {
	return &Detector{
		options:    options,
		store:      store,
		comments:   comments,
		dispatcher: dispatcher,
		notifier:   notifier,
		status:     status,
		logger:     logger,
	}
}

// SetStore replaces the object store, e.g. after a config reload.
func (d *Detector) SetStore(store *objects.Store) {
	d.store = store
}

// Enabled reports whether flap detection is enabled globally.
func (d *Detector) Enabled() bool {
	return d.options.Enabled
}

// Thresholds returns the low and high threshold applying to c.
func (d *Detector) Thresholds(c *objects.Checkable) (low, high float64) {
	if c.Key.IsService() {
		low, high = d.options.LowServiceThreshold, d.options.HighServiceThreshold
	} else {
		low, high = d.options.LowHostThreshold, d.options.HighHostThreshold
	}

	if c.Flapping.LowThreshold > 0 {
		low = c.Flapping.LowThreshold
	}
	if c.Flapping.HighThreshold > 0 {
		high = c.Flapping.HighThreshold
	}

	return
}

// Check evaluates c's current percent state change and starts or stops flapping as needed.
// With flap detection disabled globally or for c, a flapping object stops flapping.
func (d *Detector) Check(c *objects.Checkable, now time.Time) {
	if !d.options.Enabled || !c.FlapDetectionEnabled {
		if c.Flapping.IsFlapping {
			d.Exit(c, broker.FlappingDisabled, now)
		}

		return
	}

	low, high := d.Thresholds(c)

	switch {
	case !c.Flapping.IsFlapping && c.PercentStateChange >= high:
		d.Enter(c, now)
	case c.Flapping.IsFlapping && c.PercentStateChange < low:
		d.Exit(c, broker.FlappingNormal, now)
	}
}

// Enter makes c flap.
func (d *Detector) Enter(c *objects.Checkable, now time.Time) {
	if c.Flapping.IsFlapping {
		return
	}

	low, high := d.Thresholds(c)

	c.Flapping.CommentID = d.comments.Add(c.Key, types.CommentFlapping, Author, commentText(c, high), false, now).ID
	c.Flapping.IsFlapping = true
	c.Flapping.CheckRecoveryNotification = !c.Healthy()

	d.notifier.Notify(notify.Notification{Type: types.NotificationFlappingStart, Target: c.Key, Author: Author})
	d.dispatcher.Dispatch(&broker.FlappingEvent{
		Action:             broker.FlappingStart,
		Target:             c.Key,
		PercentStateChange: c.PercentStateChange,
		LowThreshold:       low,
		HighThreshold:      high,
		CommentID:          c.Flapping.CommentID,
	})

	d.status.UpdateStatus(c)
}

// Exit makes c stop flapping for the given reason.
func (d *Detector) Exit(c *objects.Checkable, reason broker.FlappingReason, now time.Time) {
	if !c.Flapping.IsFlapping && c.Flapping.CommentID == 0 {
		return
	}

	low, high := d.Thresholds(c)
	commentID := c.Flapping.CommentID

	if commentID != 0 {
		d.comments.Delete(commentID)
	}

	c.Flapping.CommentID = 0
	c.Flapping.IsFlapping = false

	notification := types.NotificationFlappingEnd
	if reason == broker.FlappingDisabled {
		notification = types.NotificationFlappingDisabled
	}

	d.notifier.Notify(notify.Notification{Type: notification, Target: c.Key, Author: Author})
	d.dispatcher.Dispatch(&broker.FlappingEvent{
		Action:             broker.FlappingStop,
		Reason:             reason,
		Target:             c.Key,
		PercentStateChange: c.PercentStateChange,
		LowThreshold:       low,
		HighThreshold:      high,
		CommentID:          commentID,
	})

	if c.Flapping.CheckRecoveryNotification && c.Healthy() {
		d.notifier.Notify(notify.Notification{Type: types.NotificationRecovery, Target: c.Key, Author: Author})
	}

	c.Flapping.CheckRecoveryNotification = false

	d.status.UpdateStatus(c)
}

// SetEnabled enables or disables flap detection globally and re-evaluates all objects.
func (d *Detector) SetEnabled(enabled bool, now time.Time) {
	if d.options.Enabled == enabled {
		return
	}

	d.options.Enabled = enabled
	d.logger.Infof("Flap detection %s globally", enabledText(enabled))

	d.store.Checkables(func(c *objects.Checkable) {
		d.Check(c, now)
	})
}

// SetObjectEnabled enables or disables flap detection for c and re-evaluates it.
func (d *Detector) SetObjectEnabled(c *objects.Checkable, enabled bool, now time.Time) {
	if c.FlapDetectionEnabled == enabled {
		return
	}

	c.FlapDetectionEnabled = enabled
	d.logger.Infof("Flap detection %s for %s %q", enabledText(enabled), c.Key.Kind(), c.Key)

	d.Check(c, now)
	d.status.UpdateStatus(c)
}

// Restore re-attaches the retained flapping comment of c or, if it is gone, creates a new one
// without notifying again.
func (d *Detector) Restore(c *objects.Checkable, now time.Time) {
	if !c.Flapping.IsFlapping {
		c.Flapping.CommentID = 0
		return
	}

	if c.Flapping.CommentID != 0 && d.comments.Get(c.Flapping.CommentID) != nil {
		return
	}

	_, high := d.Thresholds(c)
	c.Flapping.CommentID = d.comments.Add(c.Key, types.CommentFlapping, Author, commentText(c, high), false, now).ID
}

func enabledText(enabled bool) string {
	if enabled {
		return "enabled"
	}

	return "disabled"
}

func commentText(c *objects.Checkable, high float64) string {
	return fmt.Sprintf(
		"Notifications for this %s are being suppressed because it was detected as having been flapping "+
			"between different states (%2.1f%% change >= %2.1f%% threshold). "+
			"When the %s state stabilizes and the flapping stops, notifications will be re-enabled.",
		c.Key.Kind(), c.PercentStateChange, high, c.Key.Kind(),
	)
}
