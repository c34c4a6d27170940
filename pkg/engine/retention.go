package engine

import (
	"context"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/retention"
	"github.com/icinga/icingacore/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"time"
)

// restore seeds the runtime state from the retention database, if any.
func (e *Engine) restore(ctx context.Context, now time.Time) error {
	if e.retention == nil {
		return nil
	}

	s, err := e.retention.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "can't load retention data")
	}

	if s.Program != nil {
		e.ids.Downtimes.Seed(s.Program.LastDowntimeID)
		e.ids.Comments.Seed(s.Program.LastCommentID)
		e.options.Flapping.Enabled = s.Program.FlapDetectionEnabled
	}

	unknown := 0
	for _, o := range s.Objects {
		if c := e.store.Checkable(o.Key()); c != nil {
			o.Apply(c)
		} else {
			unknown++
		}
	}

	for _, row := range s.Comments {
		e.comments.Restore(row.Comment())
	}

	for _, row := range s.Downtimes {
		e.downtimes.Restore(row.Downtime())
	}

	e.store.Checkables(func(c *objects.Checkable) {
		e.flapping.Restore(c, now)
	})

	e.pruneComments()
	e.downtimes.Prune()
	expired := e.downtimes.Sweep(now)
	e.downtimes.Reconcile()

	e.logger.Infow("Restored retained state",
		zap.Int("objects", len(s.Objects)-unknown), zap.Int("vanished_objects", unknown),
		zap.Int("comments", e.comments.Len()), zap.Int("downtimes", e.downtimes.Len()),
		zap.Int("expired_downtimes", expired))

	return nil
}

// pruneComments deletes the comments of objects which don't exist anymore
// and flapping comments no object refers to.
func (e *Engine) pruneComments() {
	referenced := map[uint64]struct{}{}
	e.store.Checkables(func(c *objects.Checkable) {
		if c.Flapping.CommentID != 0 {
			referenced[c.Flapping.CommentID] = struct{}{}
		}
	})

	for _, c := range e.comments.All() {
		_, ok := referenced[c.ID]
		if e.store.Checkable(c.Target) == nil || (c.Type == types.CommentFlapping && !ok) {
			e.comments.Delete(c.ID)
		}
	}
}

// program returns the program status row.
func (e *Engine) program(now time.Time) *retention.ProgramStatus {
	return &retention.ProgramStatus{
		ID:                   1,
		InstanceID:           e.instance.String(),
		ProgramStart:         types.UnixMilli(e.programStart),
		LastUpdate:           types.UnixMilli(now),
		LastDowntimeID:       e.ids.Downtimes.Last(),
		LastCommentID:        e.ids.Comments.Last(),
		FlapDetectionEnabled: e.flapping.Enabled(),
	}
}

// Snapshot captures everything retained across restarts.
func (e *Engine) Snapshot(now time.Time) *retention.Snapshot {
	s := &retention.Snapshot{Program: e.program(now)}

	e.store.Checkables(func(c *objects.Checkable) {
		s.Objects = append(s.Objects, retention.NewObjectState(c))
	})

	for _, c := range e.comments.All() {
		s.Comments = append(s.Comments, retention.NewComment(c))
	}

	for _, d := range e.downtimes.All() {
		s.Downtimes = append(s.Downtimes, retention.NewDowntime(d))
	}

	return s
}

// SaveRetention writes the complete runtime state to the retention database.
func (e *Engine) SaveRetention(ctx context.Context, now time.Time) error {
	if e.retention == nil {
		return nil
	}

	s := e.Snapshot(now)
	if err := e.retention.Save(ctx, s); err != nil {
		return err
	}

	clear(e.dirty)

	e.logger.Debugw("Saved retention data",
		zap.Int("objects", len(s.Objects)), zap.Int("comments", len(s.Comments)), zap.Int("downtimes", len(s.Downtimes)))

	return nil
}

// SaveStatus writes the objects whose status changed since the last save and the program status.
func (e *Engine) SaveStatus(ctx context.Context, now time.Time) error {
	if e.retention == nil {
		clear(e.dirty)
		return nil
	}

	states := make([]retention.ObjectState, 0, len(e.dirty))
	for k := range e.dirty {
		if c := e.store.Checkable(k); c != nil {
			states = append(states, retention.NewObjectState(c))
		}
	}

	if err := e.retention.SaveStatus(ctx, states, e.program(now)); err != nil {
		return err
	}

	clear(e.dirty)

	return nil
}
