package retry

import (
	"context"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"io"
	"syscall"
	"testing"
	"time"
)

func TestWithBackoff(t *testing.T) {
	var errTemporary = errors.New("temporary")

	attempts := 0
	var failures []uint64
	recovered := false

	err := WithBackoff(
		context.Background(),
		func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errTemporary
			}

			return nil
		},
		func(err error) bool { return errors.Is(err, errTemporary) },
		func(uint64) time.Duration { return time.Millisecond },
		0,
		Settings{
			OnError: func(_ time.Duration, attempt uint64, _, _ error) {
				failures = append(failures, attempt)
			},
			OnSuccess: func(time.Duration, uint64, error) {
				recovered = true
			},
		},
	)

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, []uint64{0, 1}, failures)
	require.True(t, recovered)
}

func TestWithBackoff_NotRetryable(t *testing.T) {
	errFatal := errors.New("fatal")
	attempts := 0

	err := WithBackoff(
		context.Background(),
		func(context.Context) error {
			attempts++
			return errFatal
		},
		func(error) bool { return false },
		func(uint64) time.Duration { return time.Millisecond },
		0,
		Settings{},
	)

	require.True(t, errors.Is(err, errFatal))
	require.Equal(t, 1, attempts)
}

func TestWithBackoff_Timeout(t *testing.T) {
	errTemporary := errors.New("temporary")

	err := WithBackoff(
		context.Background(),
		func(context.Context) error { return errTemporary },
		func(error) bool { return true },
		func(uint64) time.Duration { return 10 * time.Millisecond },
		50*time.Millisecond,
		Settings{},
	)

	require.Error(t, err)
	require.True(t, errors.Is(err, errTemporary))
}

func TestNewExponentialWithJitter(t *testing.T) {
	b := NewExponentialWithJitter(100*time.Millisecond, time.Second)

	for attempt := uint64(0); attempt < 70; attempt++ {
		d := b(attempt)
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, time.Second)
	}

	require.Panics(t, func() { NewExponentialWithJitter(time.Second, time.Second) })
}

func TestRetryable(t *testing.T) {
	require.True(t, Retryable(io.EOF))
	require.True(t, Retryable(errors.Wrap(syscall.ECONNREFUSED, "dial")))
	require.False(t, Retryable(context.Canceled))
	require.False(t, Retryable(errors.New("WRONGTYPE")))
}
