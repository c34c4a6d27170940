// Package notify defines how the engine requests notifications.
// Formatting and delivery happen elsewhere.
package notify

import (
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/types"
	"sync"
)

// Notification is a request to notify about an object.
type Notification struct {
	Type   types.NotificationType
	Target objects.Key
	Author string
	Text   string
}

// Notifier accepts notification requests.
type Notifier interface {
	Notify(Notification)
}

// LogNotifier logs every notification request.
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier returns a new LogNotifier.
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements the Notifier interface.
func (n *LogNotifier) Notify(notification Notification) {
	n.logger.Infow("Notification requested",
		"type", notification.Type,
		"object", notification.Target,
		"author", notification.Author,
		"text", notification.Text)
}

// Recorder keeps every notification request. Mostly useful in tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

// Notify implements the Notifier interface.
func (r *Recorder) Notify(notification Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, notification)
}

// Sent returns the recorded notifications.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Notification(nil), r.sent...)
}

// Types returns the types of the recorded notifications.
func (r *Recorder) Types() []types.NotificationType {
	var t []types.NotificationType
	for _, n := range r.Sent() {
		t = append(t, n.Type)
	}

	return t
}

// Assert interface compliance.
var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*Recorder)(nil)
)
