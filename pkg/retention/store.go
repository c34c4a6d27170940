package retention

import (
	"context"
	"database/sql"
	"github.com/pkg/errors"
	"time"
)

// Load reads the retained state. Program is nil if nothing was retained yet.
func (db *DB) Load(ctx context.Context) (*Snapshot, error) {
	s := &Snapshot{}

	if err := db.SelectContext(ctx, &s.Objects, db.BuildSelectStmt(ObjectState{})); err != nil {
		return nil, errors.Wrap(err, "can't load object states")
	}

	if err := db.SelectContext(ctx, &s.Comments, db.BuildSelectStmt(Comment{})+` ORDER BY "id"`); err != nil {
		return nil, errors.Wrap(err, "can't load comments")
	}

	if err := db.SelectContext(ctx, &s.Downtimes, db.BuildSelectStmt(Downtime{})+` ORDER BY "id"`); err != nil {
		return nil, errors.Wrap(err, "can't load downtimes")
	}

	program := &ProgramStatus{}
	switch err := db.GetContext(ctx, program, db.BuildSelectStmt(ProgramStatus{})); {
	case err == nil:
		s.Program = program
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, errors.Wrap(err, "can't load program status")
	}

	db.logger.Infof("Loaded %d object states, %d comments and %d downtimes from retention",
		len(s.Objects), len(s.Comments), len(s.Downtimes))

	return s, nil
}

// Save replaces the retained state with s.
func (db *DB) Save(ctx context.Context, s *Snapshot) error {
	start := time.Now()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "can't start transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []TableNamer{ObjectState{}, Comment{}, Downtime{}} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM "`+table.TableName()+`"`); err != nil {
			return errors.Wrapf(err, "can't clear %s", table.TableName())
		}
	}

	if err := db.upsertAll(ctx, tx, s); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "can't commit retention")
	}

	db.logger.Debugf("Saved retention in %s", time.Since(start))

	return nil
}

// SaveStatus upserts the given object states and the program status.
func (db *DB) SaveStatus(ctx context.Context, states []ObjectState, program *ProgramStatus) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "can't start transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := db.upsertAll(ctx, tx, &Snapshot{Program: program, Objects: states}); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "can't commit status")
}

type namedExecer interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

func (db *DB) upsertAll(ctx context.Context, tx namedExecer, s *Snapshot) error {
	if s.Program != nil {
		s.Program.ID = 1

		if _, err := tx.NamedExecContext(ctx, db.BuildUpsertStmt(ProgramStatus{}), s.Program); err != nil {
			return errors.Wrap(err, "can't save program status")
		}
	}

	stmt := db.BuildUpsertStmt(ObjectState{})
	for i := range s.Objects {
		if _, err := tx.NamedExecContext(ctx, stmt, &s.Objects[i]); err != nil {
			return errors.Wrapf(err, "can't save state of %s", s.Objects[i].Key())
		}
	}

	stmt = db.BuildInsertStmt(Comment{})
	for i := range s.Comments {
		if _, err := tx.NamedExecContext(ctx, stmt, &s.Comments[i]); err != nil {
			return errors.Wrapf(err, "can't save comment %d", s.Comments[i].ID)
		}
	}

	stmt = db.BuildInsertStmt(Downtime{})
	for i := range s.Downtimes {
		if _, err := tx.NamedExecContext(ctx, stmt, &s.Downtimes[i]); err != nil {
			return errors.Wrapf(err, "can't save downtime %d", s.Downtimes[i].ID)
		}
	}

	return nil
}
