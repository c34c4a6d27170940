package broker

import (
	"context"
	"github.com/google/uuid"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/retry"
	"github.com/icinga/icingacore/pkg/types"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"strconv"
	"sync/atomic"
	"time"
)

// ErrSinkFull is returned by RedisSink.Handle if its buffer is exhausted.
var ErrSinkFull = errors.New("redis sink buffer full")

// RedisOptions define user configurable options of the Redis stream sink.
type RedisOptions struct {
	BufferSize int           `yaml:"buffer_size" default:"4096"`
	MaxLen     int64         `yaml:"max_len"     default:"1000000"`
	Timeout    time.Duration `yaml:"timeout"     default:"30s"`
}

// Validate checks constraints in the supplied options and returns an error if they are violated.
func (o *RedisOptions) Validate() error {
	if o.BufferSize < 1 {
		return errors.New("buffer_size must be at least 1")
	}
	if o.MaxLen < 0 {
		return errors.New("max_len cannot be negative")
	}
	if o.Timeout == 0 {
		return errors.New("timeout cannot be 0. Configure a value greater than zero, or use -1 for no timeout")
	}

	return nil
}

// StreamAdder is the part of *redis.Client the RedisSink needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamPrefix is prepended to the payload kind to form the stream key.
const StreamPrefix = "icinga:history:stream:"

// RedisSink writes payloads to Redis streams, one per payload kind.
// Handle only buffers. Run does the writing and must be running for anything to be written.
type RedisSink struct {
	client   StreamAdder
	options  *RedisOptions
	instance uuid.UUID
	logger   *logging.Logger

	records chan *redis.XAddArgs
	written atomic.Uint64
	dropped atomic.Uint64
}

// NewRedisSink returns a new RedisSink stamping records with the engine's instance id.
func NewRedisSink(client StreamAdder, instance uuid.UUID, options *RedisOptions, logger *logging.Logger) *RedisSink {
	return &RedisSink{
		client:   client,
		options:  options,
		instance: instance,
		logger:   logger,
		records:  make(chan *redis.XAddArgs, options.BufferSize),
	}
}

// Name implements the Sink interface.
func (*RedisSink) Name() string {
	return "redis"
}

// Handle implements the Sink interface.
func (s *RedisSink) Handle(p Payload) (Result, error) {
	if _, ok := p.(*CheckEvent); ok {
		return OK, nil
	}

	a := &redis.XAddArgs{
		Stream: StreamPrefix + p.Kind(),
		MaxLen: s.options.MaxLen,
		Approx: true,
		Values: s.fields(p),
	}

	select {
	case s.records <- a:
		return OK, nil
	default:
		s.dropped.Add(1)
		return OK, ErrSinkFull
	}
}

// Run writes buffered records until ctx is canceled.
func (s *RedisSink) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.logger.Interval())
	defer ticker.Stop()

	progress := s.logger.Progress("Wrote %d history records to Redis in the last %s")

	for {
		select {
		case a := <-s.records:
			if err := s.write(ctx, a); err != nil {
				return err
			}
		case <-ticker.C:
			progress.Log(s.written.Load())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Written returns the number of records written so far.
func (s *RedisSink) Written() uint64 {
	return s.written.Load()
}

// Dropped returns the number of records dropped due to a full buffer so far.
func (s *RedisSink) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *RedisSink) write(ctx context.Context, a *redis.XAddArgs) error {
	err := retry.WithBackoff(
		ctx,
		func(ctx context.Context) error {
			return s.client.XAdd(ctx, a).Err()
		},
		retry.Retryable,
		retry.NewExponentialWithJitter(128*time.Millisecond, time.Minute),
		s.options.Timeout,
		retry.Settings{
			OnError: func(elapsed time.Duration, attempt uint64, err, lastErr error) {
				if lastErr == nil || err.Error() != lastErr.Error() {
					s.logger.Warnw("Can't write to Redis. Retrying", "stream", a.Stream, "error", err)
				}
			},
			OnSuccess: func(elapsed time.Duration, attempt uint64, _ error) {
				s.logger.Infof("Redis is available again after %s (attempt %d)", elapsed, attempt+1)
			},
		},
	)
	if err != nil {
		return errors.Wrapf(err, "can't XADD to %s", a.Stream)
	}

	s.written.Add(1)

	return nil
}

func (s *RedisSink) fields(p Payload) map[string]interface{} {
	var (
		target objects.Key
		values = map[string]interface{}{"instance_id": s.instance.String()}
	)

	switch v := p.(type) {
	case *DowntimeEvent:
		target = v.Target
		values["event_type"] = v.Action.String()
		values["downtime_id"] = strconv.FormatUint(v.ID, 10)
		values["entry_time"] = millis(v.EntryTime)
		values["scheduled_start_time"] = millis(v.StartTime)
		values["scheduled_end_time"] = millis(v.EndTime)
		values["is_flexible"] = strconv.FormatBool(!v.Fixed)
		values["flexible_duration"] = strconv.FormatInt(v.Duration.Milliseconds(), 10)
		values["triggered_by_id"] = strconv.FormatUint(v.TriggeredBy, 10)
		values["author"] = v.Author
		values["comment"] = v.Comment
	case *FlappingEvent:
		target = v.Target
		values["event_type"] = v.Action.String()
		values["reason"] = v.Reason.String()
		values["percent_state_change"] = strconv.FormatFloat(v.PercentStateChange, 'f', -1, 64)
		values["flapping_threshold_low"] = strconv.FormatFloat(v.LowThreshold, 'f', -1, 64)
		values["flapping_threshold_high"] = strconv.FormatFloat(v.HighThreshold, 'f', -1, 64)
		values["comment_id"] = strconv.FormatUint(v.CommentID, 10)
	case *CommentEvent:
		target = v.Target
		values["event_type"] = v.Action.String()
		values["comment_id"] = strconv.FormatUint(v.ID, 10)
		values["entry_type"] = v.Type.String()
		values["entry_time"] = millis(v.EntryTime)
		values["author"] = v.Author
		values["comment"] = v.Text
		values["is_persistent"] = strconv.FormatBool(v.Persistent)
	case *StatusEvent:
		target = v.Target
		values["event_type"] = "status"
		values["state"] = strconv.Itoa(int(v.State))
		values["state_type"] = v.StateType.String()
		values["check_attempt"] = strconv.Itoa(v.CurrentAttempt)
		values["last_update"] = millis(v.LastCheck)
		values["next_check"] = millis(v.NextCheck)
		values["is_flapping"] = strconv.FormatBool(v.IsFlapping)
		values["in_downtime"] = strconv.FormatBool(v.ScheduledDowntimeDepth > 0)
	}

	if target.Host != "" {
		values["object_type"] = target.Kind()
		values["host_name"] = target.Host
		if target.IsService() {
			values["service_name"] = target.Service
		}
	}

	return values
}

func millis(t time.Time) string {
	text, _ := types.UnixMilli(t).MarshalText()
	return string(text)
}

// Assert interface compliance.
var (
	_ Sink        = (*RedisSink)(nil)
	_ StreamAdder = (*redis.Client)(nil)
)
