package scheduling

import (
	"go.uber.org/zap/zapcore"
	"time"
)

// Info holds the counters of one scheduling pass. It is not retained afterwards.
type Info struct {
	TotalServices          int
	TotalScheduledServices int
	TotalHosts             int
	TotalScheduledHosts    int

	AverageServicesPerHost float64

	ServiceCheckIntervalTotal   time.Duration
	HostCheckIntervalTotal      time.Duration
	AverageServiceCheckInterval time.Duration
	AverageHostCheckInterval    time.Duration

	AverageServiceExecutionTime time.Duration
	AverageHostExecutionTime    time.Duration

	ServiceInterCheckDelay time.Duration
	HostInterCheckDelay    time.Duration

	InterleaveFactor      int
	TotalInterleaveBlocks int

	FirstServiceCheck time.Time
	LastServiceCheck  time.Time
	FirstHostCheck    time.Time
	LastHostCheck     time.Time
}

// MarshalLogObject implements the zapcore.ObjectMarshaler interface.
func (i *Info) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("total_services", i.TotalServices)
	enc.AddInt("scheduled_services", i.TotalScheduledServices)
	enc.AddInt("total_hosts", i.TotalHosts)
	enc.AddInt("scheduled_hosts", i.TotalScheduledHosts)
	enc.AddFloat64("average_services_per_host", i.AverageServicesPerHost)
	enc.AddDuration("average_service_check_interval", i.AverageServiceCheckInterval)
	enc.AddDuration("average_host_check_interval", i.AverageHostCheckInterval)
	enc.AddDuration("service_inter_check_delay", i.ServiceInterCheckDelay)
	enc.AddDuration("host_inter_check_delay", i.HostInterCheckDelay)
	enc.AddInt("service_interleave_factor", i.InterleaveFactor)
	enc.AddInt("total_interleave_blocks", i.TotalInterleaveBlocks)
	enc.AddTime("first_service_check", i.FirstServiceCheck)
	enc.AddTime("last_service_check", i.LastServiceCheck)
	enc.AddTime("first_host_check", i.FirstHostCheck)
	enc.AddTime("last_host_check", i.LastHostCheck)

	return nil
}

// average accumulates a running average of n samples.
func average(avg time.Duration, n int, sample time.Duration) time.Duration {
	return avg + (sample-avg)/time.Duration(n)
}

// Assert interface compliance.
var _ zapcore.ObjectMarshaler = (*Info)(nil)
