// Package comments keeps the comments attached to hosts and services.
package comments

import (
	"github.com/icinga/icingacore/pkg/broker"
	"github.com/icinga/icingacore/pkg/ids"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/types"
	"sort"
	"time"
)

// Comment is a note attached to a host or service.
type Comment struct {
	ID         uint64
	Target     objects.Key
	Type       types.CommentType
	EntryTime  time.Time
	Author     string
	Text       string
	Persistent bool
}

// Manager owns all comments. It is not safe for concurrent use.
type Manager struct {
	comments   map[uint64]*Comment
	ids        *ids.Sequence
	dispatcher broker.Dispatcher
}

// NewManager returns a new Manager allocating ids from seq.
func NewManager(seq *ids.Sequence, dispatcher broker.Dispatcher) *Manager {
	return &Manager{
		comments:   map[uint64]*Comment{},
		ids:        seq,
		dispatcher: dispatcher,
	}
}

// Add creates a comment and returns it.
func (m *Manager) Add(
	target objects.Key, t types.CommentType, author, text string, persistent bool, now time.Time,
) *Comment {
	c := &Comment{
		ID:         m.ids.Next(),
		Target:     target,
		Type:       t,
		EntryTime:  now,
		Author:     author,
		Text:       text,
		Persistent: persistent,
	}

	m.comments[c.ID] = c
	m.announce(broker.CommentAdd, c)

	return c
}

// Restore adds a retained comment, keeping its id.
func (m *Manager) Restore(c *Comment) {
	m.ids.Seed(c.ID)
	m.comments[c.ID] = c
}

// Delete removes the comment and reports whether it existed.
func (m *Manager) Delete(id uint64) bool {
	c, ok := m.comments[id]
	if !ok {
		return false
	}

	delete(m.comments, id)
	m.announce(broker.CommentDelete, c)

	return true
}

// Get returns the comment or nil.
func (m *Manager) Get(id uint64) *Comment {
	return m.comments[id]
}

// Len returns the number of comments.
func (m *Manager) Len() int {
	return len(m.comments)
}

// All returns all comments ordered by id.
func (m *Manager) All() []*Comment {
	all := make([]*Comment, 0, len(m.comments))
	for _, c := range m.comments {
		all = append(all, c)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})

	return all
}

// ForTarget returns the comments of target ordered by id.
func (m *Manager) ForTarget(target objects.Key) []*Comment {
	var matching []*Comment
	for _, c := range m.All() {
		if c.Target == target {
			matching = append(matching, c)
		}
	}

	return matching
}

func (m *Manager) announce(action broker.CommentAction, c *Comment) {
	m.dispatcher.Dispatch(&broker.CommentEvent{
		Action:     action,
		ID:         c.ID,
		Target:     c.Target,
		Type:       c.Type,
		EntryTime:  c.EntryTime,
		Author:     c.Author,
		Text:       c.Text,
		Persistent: c.Persistent,
	})
}
