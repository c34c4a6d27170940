package broker

import (
	"fmt"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/objects"
	"strings"
)

// LogSink writes alert log lines for downtime and flapping transitions
// and logs every other payload at debug level.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink returns a new LogSink.
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Name implements the Sink interface.
func (*LogSink) Name() string {
	return "log"
}

// Handle implements the Sink interface.
func (s *LogSink) Handle(p Payload) (Result, error) {
	switch v := p.(type) {
	case *DowntimeEvent:
		if line := downtimeAlert(v); line != "" {
			s.logger.Infow(line, "downtime_id", v.ID, "object", v.Target)
			return OK, nil
		}

		s.logger.Debugw("Downtime "+v.Action.String(), "downtime_id", v.ID, "object", v.Target,
			"start", v.StartTime, "end", v.EndTime, "fixed", v.Fixed, "triggered_by", v.TriggeredBy)
	case *FlappingEvent:
		s.logger.Infow(flappingAlert(v), "object", v.Target, "percent_state_change", v.PercentStateChange)
	case *CommentEvent:
		s.logger.Debugw("Comment "+v.Action.String(), "comment_id", v.ID, "object", v.Target, "type", v.Type)
	case *StatusEvent:
		s.logger.Debugw("Status update", "object", v.Target, "state", v.State, "state_type", v.StateType,
			"downtime_depth", v.ScheduledDowntimeDepth, "is_flapping", v.IsFlapping)
	case *CheckEvent:
		s.logger.Debugw("Check "+v.Phase.String(), "object", v.Target, "state", v.State)
	}

	return OK, nil
}

func alertPrefix(k objects.Key, what string) string {
	return fmt.Sprintf("%s %s ALERT: %s;", strings.ToUpper(k.Kind()), what, strings.ReplaceAll(k.String(), "!", ";"))
}

func downtimeAlert(e *DowntimeEvent) string {
	kind := strings.ToUpper(e.Target.Kind()[:1]) + e.Target.Kind()[1:]

	switch e.Action {
	case DowntimeStart:
		return alertPrefix(e.Target, "DOWNTIME") + "STARTED; " + kind + " has entered a period of scheduled downtime"
	case DowntimeStop:
		return alertPrefix(e.Target, "DOWNTIME") + "STOPPED; " + kind + " has exited from a period of scheduled downtime"
	case DowntimeCancel:
		return alertPrefix(e.Target, "DOWNTIME") + "CANCELLED; Scheduled downtime for " + e.Target.Kind() + " has been cancelled."
	default:
		return ""
	}
}

func flappingAlert(e *FlappingEvent) string {
	kind := strings.ToUpper(e.Target.Kind()[:1]) + e.Target.Kind()[1:]
	prefix := alertPrefix(e.Target, "FLAPPING")

	switch {
	case e.Action == FlappingStart:
		return fmt.Sprintf("%sSTARTED; %s appears to have started flapping (%.1f%% change >= %.1f%% threshold)",
			prefix, kind, e.PercentStateChange, e.HighThreshold)
	case e.Reason == FlappingDisabled:
		return prefix + "DISABLED; Flap detection has been disabled"
	default:
		return fmt.Sprintf("%sSTOPPED; %s appears to have stopped flapping (%.1f%% change < %.1f%% threshold)",
			prefix, kind, e.PercentStateChange, e.LowThreshold)
	}
}

// Assert interface compliance.
var _ Sink = (*LogSink)(nil)
