package command

import (
	"context"
	"fmt"
	"github.com/icinga/icingacore/internal"
	"github.com/icinga/icingacore/internal/config"
	"github.com/icinga/icingacore/internal/objectsfile"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/retention"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"os"
)

// Command provides factories for the object store, the retention database
// and the Redis client from Config.
type Command struct {
	Flags   *config.Flags
	Config  *config.Config
	Logging *logging.Logging
	Logger  *logging.Logger
}

// New creates and returns a new Command, parses CLI flags and the YAML config, and initializes the logger.
// It exits after printing the version if requested.
func New() *Command {
	f, err := config.ParseFlags()
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		fatal(err)
	}

	if f.Version {
		internal.Version.Print(os.Stdout, "icingacore")
		os.Exit(0)
	}

	cfg, err := config.FromYAMLFile(f.Config)
	if err != nil {
		fatal(err)
	}

	logs, err := logging.NewLoggingFromConfig("icingacore", cfg.Logging)
	if err != nil {
		fatal(errors.Wrap(err, "can't configure logging"))
	}

	return &Command{
		Flags:   f,
		Config:  cfg,
		Logging: logs,
		Logger:  logs.GetLogger(),
	}
}

// Objects loads the object definitions.
func (c Command) Objects() *objects.Store {
	store, err := objectsfile.Load(c.Config.Objects.Path)
	if err != nil {
		c.Logger.Fatalf("%+v", err)
	}

	return store
}

// Retention opens the retention database.
func (c Command) Retention(ctx context.Context) *retention.DB {
	db, err := retention.Open(ctx, c.Config.Retention.Path, c.Logging.GetChildLogger("retention"))
	if err != nil {
		c.Logger.Fatalf("%+v", errors.Wrap(err, "can't open retention database"))
	}

	return db
}

// Redis creates and returns a new Redis client, or nil if no Redis is configured.
func (c Command) Redis() *redis.Client {
	if c.Config.Redis.Address == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.Database,
	})
}

// fatal prints err to stderr and exits, for errors occurring before logging is set up.
func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%+v\n", err)
	os.Exit(1)
}
