package scheduling

import (
	"github.com/pkg/errors"
	"time"
)

// DelayMethod selects how the inter-check delay is computed.
type DelayMethod string

const (
	DelayNone  DelayMethod = "none"
	DelayDumb  DelayMethod = "dumb"
	DelaySmart DelayMethod = "smart"
	DelayUser  DelayMethod = "user"
)

// InterleaveMethod selects how the service interleave factor is computed.
type InterleaveMethod string

const (
	InterleaveSmart InterleaveMethod = "smart"
	InterleaveUser  InterleaveMethod = "user"
)

// Options define user configurable scheduling options.
type Options struct {
	ServiceDelayMethod    DelayMethod      `yaml:"service_inter_check_delay_method" default:"smart"`
	ServiceDelay          time.Duration    `yaml:"service_inter_check_delay"`
	MaxServiceCheckSpread time.Duration    `yaml:"max_service_check_spread"         default:"30m"`
	HostDelayMethod       DelayMethod      `yaml:"host_inter_check_delay_method"    default:"smart"`
	HostDelay             time.Duration    `yaml:"host_inter_check_delay"`
	MaxHostCheckSpread    time.Duration    `yaml:"max_host_check_spread"            default:"30m"`
	InterleaveMethod      InterleaveMethod `yaml:"service_interleave_method"        default:"smart"`
	InterleaveFactor      int              `yaml:"service_interleave_factor"`

	CheckReaperInterval      time.Duration `yaml:"check_reaper_interval"      default:"10s"`
	CommandCheckInterval     time.Duration `yaml:"command_check_interval"     default:"1s"`
	CheckServiceFreshness    bool          `yaml:"check_service_freshness"    default:"true"`
	ServiceFreshnessInterval time.Duration `yaml:"service_freshness_interval" default:"60s"`
	CheckHostFreshness       bool          `yaml:"check_host_freshness"       default:"false"`
	HostFreshnessInterval    time.Duration `yaml:"host_freshness_interval"    default:"60s"`
	CheckOrphans             bool          `yaml:"check_orphans"              default:"true"`
	OrphanCheckInterval      time.Duration `yaml:"orphan_check_interval"      default:"60s"`
	OrphanSlack              time.Duration `yaml:"orphan_slack"               default:"10m"`
	AutoReschedule           bool          `yaml:"auto_reschedule"            default:"false"`
	AutoRescheduleInterval   time.Duration `yaml:"auto_reschedule_interval"   default:"30s"`
	AutoRescheduleWindow     time.Duration `yaml:"auto_reschedule_window"     default:"3m"`
	RetentionSaveInterval    time.Duration `yaml:"retention_save_interval"    default:"1h"`
	StatusSaveInterval       time.Duration `yaml:"status_save_interval"       default:"10s"`
	DowntimeExpireInterval   time.Duration `yaml:"downtime_expire_interval"   default:"1m"`
}

// Validate checks constraints in the supplied scheduling options and returns an error if they are violated.
func (o *Options) Validate() error {
	for name, m := range map[string]DelayMethod{
		"service_inter_check_delay_method": o.ServiceDelayMethod,
		"host_inter_check_delay_method":    o.HostDelayMethod,
	} {
		switch m {
		case DelayNone, DelayDumb, DelaySmart, DelayUser:
		default:
			return errors.Errorf("invalid %s %q, must be one of none, dumb, smart or user", name, m)
		}
	}

	if o.ServiceDelayMethod == DelayUser && o.ServiceDelay < 0 {
		return errors.New("service_inter_check_delay cannot be negative")
	}
	if o.HostDelayMethod == DelayUser && o.HostDelay < 0 {
		return errors.New("host_inter_check_delay cannot be negative")
	}
	if o.MaxServiceCheckSpread <= 0 || o.MaxHostCheckSpread <= 0 {
		return errors.New("max check spreads must be positive")
	}

	switch o.InterleaveMethod {
	case InterleaveSmart:
	case InterleaveUser:
		if o.InterleaveFactor < 1 {
			return errors.New("service_interleave_factor must be at least 1")
		}
	default:
		return errors.Errorf("invalid service_interleave_method %q, must be smart or user", o.InterleaveMethod)
	}

	if o.AutoReschedule && (o.AutoRescheduleInterval <= 0 || o.AutoRescheduleWindow <= 0) {
		return errors.New("auto_reschedule_interval and auto_reschedule_window must be positive")
	}

	return nil
}
