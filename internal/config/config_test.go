package config

import (
	"github.com/creasty/defaults"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/scheduling"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFromReader(t *testing.T) {
	const yamlConfig = `
logging:
  output: console
  options:
    scheduler: debug

scheduling:
  service_inter_check_delay_method: user
  service_inter_check_delay: 2s
  service_interleave_method: user
  service_interleave_factor: 4

flapping:
  high_service_threshold: 40

redis:
  address: localhost:6379

command_file: /run/icingacore/cmd.fifo
`

	subtests := []struct {
		name     string
		yaml     string
		env      map[string]string
		expected func(c *Config)
		error    string
	}{
		{
			name: "yaml-only",
			yaml: yamlConfig,
			expected: func(c *Config) {
				c.Logging.Output = logging.CONSOLE
				c.Logging.Options = logging.Options{"scheduler": zapcore.DebugLevel}
				c.Scheduling.ServiceDelayMethod = scheduling.DelayUser
				c.Scheduling.ServiceDelay = 2 * time.Second
				c.Scheduling.InterleaveMethod = scheduling.InterleaveUser
				c.Scheduling.InterleaveFactor = 4
				c.Flapping.HighServiceThreshold = 40
				c.Redis.Address = "localhost:6379"
				c.CommandFile = "/run/icingacore/cmd.fifo"
			},
		},
		{
			name: "env-overrides",
			yaml: yamlConfig,
			env: map[string]string{
				"ICINGACORE_REDIS_ADDRESS":        "redis.example.com:6380",
				"ICINGACORE_RETENTION_PATH":       "/tmp/retention.db",
				"ICINGACORE_OBJECTS_WATCH":        "false",
				"ICINGACORE_METRICS_LISTEN":       ":9090",
				"ICINGACORE_COMMAND_BUFFER_SLOTS": "16",
				"ICINGACORE_LOGGING_LEVEL":        "warn",
			},
			expected: func(c *Config) {
				c.Logging.Output = logging.CONSOLE
				c.Logging.Level = zapcore.WarnLevel
				c.Logging.Options = logging.Options{"scheduler": zapcore.DebugLevel}
				c.Scheduling.ServiceDelayMethod = scheduling.DelayUser
				c.Scheduling.ServiceDelay = 2 * time.Second
				c.Scheduling.InterleaveMethod = scheduling.InterleaveUser
				c.Scheduling.InterleaveFactor = 4
				c.Flapping.HighServiceThreshold = 40
				c.Redis.Address = "redis.example.com:6380"
				c.Retention.Path = "/tmp/retention.db"
				c.Objects.Watch = false
				c.Metrics.Listen = ":9090"
				c.CommandFile = "/run/icingacore/cmd.fifo"
				c.CommandBufferSlots = 16
			},
		},
		{
			name: "defaults-only",
			yaml: "logging:\n  output: console\n",
			expected: func(c *Config) {
				c.Logging.Output = logging.CONSOLE
			},
		},
		{
			name:  "unknown-field",
			yaml:  "unknown: unknown",
			error: `unknown field "unknown"`,
		},
		{
			name:  "invalid-thresholds",
			yaml:  "flapping:\n  low_host_threshold: 50\n  high_host_threshold: 40\n",
			error: "flapping thresholds",
		},
		{
			name:  "invalid-delay-method",
			yaml:  "scheduling:\n  host_inter_check_delay_method: clever\n",
			error: "host_inter_check_delay_method",
		},
		{
			name:  "invalid-slots",
			yaml:  "command_buffer_slots: 0\n",
			error: "command_buffer_slots",
		},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			for k, v := range st.env {
				t.Setenv(k, v)
			}

			actual, err := FromReader(strings.NewReader(st.yaml))
			if st.error != "" {
				require.ErrorContains(t, err, st.error)
				return
			}

			require.NoError(t, err)

			expected := &Config{}
			require.NoError(t, defaults.Set(expected))
			st.expected(expected)

			require.Equal(t, expected, actual)
		})
	}
}

func TestFromYAMLFile(t *testing.T) {
	_, err := FromYAMLFile(filepath.Join(t.TempDir(), "missing.yml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  listen: 127.0.0.1:9100\n"), 0o600))

	c, err := FromYAMLFile(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9100", c.Metrics.Listen)
	require.Equal(t, 4096, c.CommandBufferSlots)
}

func TestParseFlags(t *testing.T) {
	f, err := parseFlags([]string{"-c", "/tmp/config.yml"})
	require.NoError(t, err)
	require.Equal(t, "/tmp/config.yml", f.Config)
	require.False(t, f.Version)

	f, err = parseFlags([]string{"--version"})
	require.NoError(t, err)
	require.True(t, f.Version)
	require.Equal(t, DefaultConfigPath, f.Config)

	_, err = parseFlags([]string{"--bogus"})
	require.Error(t, err)
}
