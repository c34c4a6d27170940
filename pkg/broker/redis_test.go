package broker

import (
	"context"
	"github.com/google/uuid"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"io"
	"sync"
	"testing"
	"time"
)

type fakeStream struct {
	mu       sync.Mutex
	failures int
	added    []*redis.XAddArgs
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--
		return redis.NewStringResult("", io.EOF)
	}

	f.added = append(f.added, a)

	return redis.NewStringResult("1-0", nil)
}

func (f *fakeStream) records() []*redis.XAddArgs {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*redis.XAddArgs(nil), f.added...)
}

func TestRedisSink(t *testing.T) {
	fake := &fakeStream{failures: 2}
	instance := uuid.New()
	s := NewRedisSink(fake, instance, &RedisOptions{BufferSize: 4, MaxLen: 100, Timeout: time.Minute}, logging.NewNop())

	start := time.UnixMilli(1700000000000)

	_, err := s.Handle(&DowntimeEvent{
		Action: DowntimeStart, ID: 7, Target: objects.ServiceKey("web", "http"),
		StartTime: start, EndTime: start.Add(time.Hour), Fixed: true,
	})
	require.NoError(t, err)

	_, err = s.Handle(&CheckEvent{Phase: CheckInitiate})
	require.NoError(t, err, "checks aren't streamed")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(fake.records()) == 1 }, 10*time.Second, 10*time.Millisecond)

	cancel()
	require.True(t, errors.Is(<-done, context.Canceled))

	a := fake.records()[0]
	require.Equal(t, "icinga:history:stream:downtime", a.Stream)
	require.Equal(t, int64(100), a.MaxLen)

	values := a.Values.(map[string]interface{})
	require.Equal(t, instance.String(), values["instance_id"])
	require.Equal(t, "start", values["event_type"])
	require.Equal(t, "7", values["downtime_id"])
	require.Equal(t, "1700000000000", values["scheduled_start_time"])
	require.Equal(t, "false", values["is_flexible"])
	require.Equal(t, "service", values["object_type"])
	require.Equal(t, "web", values["host_name"])
	require.Equal(t, "http", values["service_name"])
	require.Equal(t, uint64(1), s.Written())
}

func TestRedisSink_Full(t *testing.T) {
	s := NewRedisSink(&fakeStream{}, uuid.New(), &RedisOptions{BufferSize: 1, Timeout: time.Minute}, logging.NewNop())

	_, err := s.Handle(&CommentEvent{ID: 1})
	require.NoError(t, err)

	_, err = s.Handle(&CommentEvent{ID: 2})
	require.True(t, errors.Is(err, ErrSinkFull))
	require.Equal(t, uint64(1), s.Dropped())
}
