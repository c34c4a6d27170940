package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"github.com/goccy/go-yaml"
	"github.com/icinga/icingacore/pkg/broker"
	"github.com/icinga/icingacore/pkg/flapping"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/retention"
	"github.com/icinga/icingacore/pkg/scheduling"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"io"
	"os"
)

// DefaultConfigPath specifies the default location of icingacore's config.yml for package installations.
const DefaultConfigPath = "/etc/icingacore/config.yml"

// EnvPrefix prefixes all environment variables overriding the configuration.
const EnvPrefix = "ICINGACORE_"

// Config defines icingacore config.
type Config struct {
	Logging    logging.Config     `yaml:"logging" envPrefix:"LOGGING_"`
	Scheduling scheduling.Options `yaml:"scheduling"`
	Flapping   flapping.Options   `yaml:"flapping"`
	Retention  retention.Config   `yaml:"retention" envPrefix:"RETENTION_"`
	Redis      RedisConfig        `yaml:"redis" envPrefix:"REDIS_"`
	Objects    ObjectsConfig      `yaml:"objects" envPrefix:"OBJECTS_"`
	Metrics    MetricsConfig      `yaml:"metrics" envPrefix:"METRICS_"`

	// CommandFile is the path of the external command FIFO. Empty disables it.
	CommandFile        string `yaml:"command_file" env:"COMMAND_FILE"`
	CommandBufferSlots int    `yaml:"command_buffer_slots" env:"COMMAND_BUFFER_SLOTS" default:"4096"`
}

// Validate checks constraints in the supplied configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Scheduling.Validate(); err != nil {
		return err
	}
	if err := c.Flapping.Validate(); err != nil {
		return err
	}
	if err := c.Retention.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Objects.Validate(); err != nil {
		return err
	}
	if c.CommandBufferSlots < 1 {
		return errors.New("command_buffer_slots must be at least 1")
	}

	return nil
}

// RedisConfig defines the optional Redis connection broker events are streamed to.
type RedisConfig struct {
	// Address is host:port of the Redis server. Empty disables streaming.
	Address  string              `yaml:"address" env:"ADDRESS"`
	Password string              `yaml:"password" env:"PASSWORD"`
	Database int                 `yaml:"database" env:"DATABASE"`
	Options  broker.RedisOptions `yaml:"options"`
}

// Validate checks constraints in the supplied Redis configuration and returns an error if they are violated.
func (r *RedisConfig) Validate() error {
	if r.Address == "" {
		return nil
	}

	if r.Database < 0 {
		return errors.New("Redis database must not be negative")
	}

	return r.Options.Validate()
}

// ObjectsConfig defines where object definitions come from.
type ObjectsConfig struct {
	Path  string `yaml:"path" env:"PATH" default:"/etc/icingacore/objects.yml"`
	Watch bool   `yaml:"watch" env:"WATCH" default:"true"`
}

// Validate checks constraints in the supplied objects configuration and returns an error if they are violated.
func (o *ObjectsConfig) Validate() error {
	if o.Path == "" {
		return errors.New("objects path missing")
	}

	return nil
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address to serve /metrics on. Empty disables the endpoint.
	Listen string `yaml:"listen" env:"LISTEN"`
}

// Flags defines CLI flags.
type Flags struct {
	// Version decides whether to just print the version and exit.
	Version bool `long:"version" description:"print version and exit"`
	// Config is the path to the config file
	Config string `short:"c" long:"config" description:"path to config file" required:"true" default:"/etc/icingacore/config.yml"`
	// default must be kept in sync with DefaultConfigPath.
}

// FromYAMLFile returns a new Config value created from the given YAML config file,
// with environment variables prefixed with EnvPrefix taking precedence.
func FromYAMLFile(name string) (*Config, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "can't open YAML file "+name)
	}
	defer func() { _ = f.Close() }()

	return FromReader(f)
}

// FromReader works like FromYAMLFile, but reads the YAML from r.
func FromReader(r io.Reader) (*Config, error) {
	c := &Config{}

	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "can't set config defaults")
	}

	d := yaml.NewDecoder(r, yaml.DisallowUnknownField())
	if err := d.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "can't parse YAML")
	}

	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "can't parse environment variables")
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return c, nil
}

// ParseFlags parses CLI flags and
// returns a Flags value created from them.
func ParseFlags() (*Flags, error) {
	return parseFlags(os.Args[1:])
}

func parseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	parser := flags.NewParser(f, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, errors.Wrap(err, "can't parse CLI flags")
	}

	return f, nil
}
