package logging

import (
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"testing"
	"time"
)

func TestProgress_Log(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewLogger(zap.New(core).Sugar(), 20*time.Second).Progress("Handled %d events in the last %s")

	require.Equal(t, uint64(5), p.Log(5))
	require.Equal(t, uint64(0), p.Log(5))
	require.Equal(t, uint64(3), p.Log(8))

	var messages []string
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
	}

	require.Equal(t, []string{
		"Handled 5 events in the last 20s",
		"Handled 3 events in the last 20s",
	}, messages)
}
