// Package retention persists runtime state across restarts in SQLite.
package retention

import (
	"context"
	"fmt"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/strcase"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"reflect"
	"strings"
)

// Config defines the retention database configuration.
type Config struct {
	Path string `yaml:"path" env:"PATH" default:"/var/lib/icingacore/retention.db"`
}

// Validate checks constraints in the supplied retention configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("retention path missing")
	}

	return nil
}

// TableNamer implements the TableName method,
// which returns the table of the object.
type TableNamer interface {
	TableName() string
}

// PrimaryKeyer implements the PrimaryKey method,
// which returns the primary key columns of the object's table.
type PrimaryKeyer interface {
	PrimaryKey() []string
}

// DB is a wrapper around sqlx.DB with statement building capabilities.
type DB struct {
	*sqlx.DB

	logger *logging.Logger
}

// Open opens the SQLite database at path and creates its schema if necessary.
func Open(ctx context.Context, path string, logger *logging.Logger) (*DB, error) {
	db, err := sqlx.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "can't open database")
	}

	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.Mapper = reflectx.NewMapperFunc("db", strcase.Snake)

	for _, ddl := range schema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "can't create schema")
		}
	}

	logger.Debugf("Opened retention database %s", path)

	return &DB{DB: db, logger: logger}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS "object_state" (
		"host_name" TEXT NOT NULL,
		"service_name" TEXT NOT NULL DEFAULT '',
		"current_state" INTEGER NOT NULL DEFAULT 0,
		"last_hard_state" INTEGER NOT NULL DEFAULT 0,
		"state_type" TEXT NOT NULL DEFAULT 'hard',
		"current_attempt" INTEGER NOT NULL DEFAULT 1,
		"last_check" INTEGER NULL,
		"next_check" INTEGER NULL,
		"checks_enabled" INTEGER NOT NULL DEFAULT 1,
		"flap_detection_enabled" INTEGER NOT NULL DEFAULT 1,
		"is_flapping" INTEGER NOT NULL DEFAULT 0,
		"flapping_comment_id" INTEGER NOT NULL DEFAULT 0,
		"percent_state_change" REAL NOT NULL DEFAULT 0,
		"scheduled_downtime_depth" INTEGER NOT NULL DEFAULT 0,
		"pending_flex_downtime" INTEGER NOT NULL DEFAULT 0,
		"execution_time" INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY ("host_name", "service_name")
	)`,
	`CREATE TABLE IF NOT EXISTS "comment" (
		"id" INTEGER NOT NULL PRIMARY KEY,
		"host_name" TEXT NOT NULL,
		"service_name" TEXT NOT NULL DEFAULT '',
		"entry_type" TEXT NOT NULL,
		"entry_time" INTEGER NULL,
		"author" TEXT NOT NULL DEFAULT '',
		"text" TEXT NOT NULL DEFAULT '',
		"is_persistent" INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS "downtime" (
		"id" INTEGER NOT NULL PRIMARY KEY,
		"host_name" TEXT NOT NULL,
		"service_name" TEXT NOT NULL DEFAULT '',
		"entry_time" INTEGER NULL,
		"scheduled_start_time" INTEGER NOT NULL,
		"scheduled_end_time" INTEGER NOT NULL,
		"flexible_start_time" INTEGER NULL,
		"is_fixed" INTEGER NOT NULL,
		"duration" INTEGER NOT NULL DEFAULT 0,
		"triggered_by_id" INTEGER NOT NULL DEFAULT 0,
		"author" TEXT NOT NULL DEFAULT '',
		"comment" TEXT NOT NULL DEFAULT '',
		"is_in_effect" INTEGER NOT NULL DEFAULT 0,
		"comment_id" INTEGER NOT NULL DEFAULT 0,
		"incremented_pending_downtime" INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS "program_status" (
		"id" INTEGER NOT NULL PRIMARY KEY CHECK ("id" = 1),
		"instance_id" TEXT NOT NULL,
		"program_start" INTEGER NULL,
		"last_update" INTEGER NULL,
		"last_downtime_id" INTEGER NOT NULL DEFAULT 0,
		"last_comment_id" INTEGER NOT NULL DEFAULT 0,
		"flap_detection_enabled" INTEGER NOT NULL DEFAULT 1
	)`,
}

// BuildColumns returns all columns of the given struct.
func (db *DB) BuildColumns(subject interface{}) []string {
	fields := db.Mapper.TypeMap(reflect.TypeOf(subject)).Index
	columns := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Field.Tag == "" {
			continue
		}
		columns = append(columns, f.Name)
	}

	return columns
}

// BuildInsertStmt returns an INSERT INTO statement for the given struct.
func (db *DB) BuildInsertStmt(into TableNamer) string {
	columns := db.BuildColumns(into)

	return fmt.Sprintf(
		`INSERT INTO "%s" ("%s") VALUES (%s)`,
		into.TableName(),
		strings.Join(columns, `", "`),
		fmt.Sprintf(":%s", strings.Join(columns, ", :")),
	)
}

// BuildUpsertStmt returns an upsert statement for the given struct.
func (db *DB) BuildUpsertStmt(subject interface {
	TableNamer
	PrimaryKeyer
}) string {
	columns := db.BuildColumns(subject)
	set := make([]string, 0, len(columns))

	for _, col := range columns {
		set = append(set, fmt.Sprintf(`"%[1]s" = excluded."%[1]s"`, col))
	}

	return fmt.Sprintf(
		`%s ON CONFLICT ("%s") DO UPDATE SET %s`,
		db.BuildInsertStmt(subject),
		strings.Join(subject.PrimaryKey(), `", "`),
		strings.Join(set, ", "),
	)
}

// BuildSelectStmt returns a SELECT query for all columns of the given struct.
func (db *DB) BuildSelectStmt(from TableNamer) string {
	return fmt.Sprintf(`SELECT "%s" FROM "%s"`, strings.Join(db.BuildColumns(from), `", "`), from.TableName())
}
