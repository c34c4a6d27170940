package events

import (
	"container/heap"
	"github.com/icinga/icingacore/pkg/objects"
	"sort"
	"time"
)

// Queue holds the normal and high priority event sequences, each ordered by run time.
// Events with equal run times leave a sequence in insertion order.
// On exact ties across sequences the high priority event wins.
// Queue is not safe for concurrent use.
type Queue struct {
	normal sequence
	high   sequence
	seq    uint64

	// checks and downtimes index the queued check events by object
	// and the queued downtime events by downtime id.
	checks    map[objects.Key][]*Event
	downtimes map[uint64][]*Event
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		checks:    map[objects.Key][]*Event{},
		downtimes: map[uint64][]*Event{},
	}
}

// Schedule inserts e into the sequence its priority selects.
func (q *Queue) Schedule(e *Event) {
	q.seq++
	e.seq = q.seq

	heap.Push(q.sequence(e.Priority), e)
	q.index(e)
}

// Peek returns the earliest event without removing it, or nil if q is empty.
func (q *Queue) Peek() *Event {
	s := q.earliest()
	if s == nil {
		return nil
	}

	return (*s)[0]
}

// Pop removes and returns the earliest event, or nil if q is empty.
func (q *Queue) Pop() *Event {
	s := q.earliest()
	if s == nil {
		return nil
	}

	e := heap.Pop(s).(*Event)
	q.unindex(e)

	return e
}

// Remove deletes the earliest event matching the predicate and reports whether there was one.
func (q *Queue) Remove(match func(*Event) bool) bool {
	var (
		found *Event
		from  *sequence
	)

	for _, s := range []*sequence{&q.high, &q.normal} {
		for _, e := range *s {
			if match(e) && (found == nil || e.before(found)) {
				found, from = e, s
			}
		}
	}

	if found == nil {
		return false
	}

	heap.Remove(from, found.index)
	q.unindex(found)

	return true
}

// RemoveAll deletes every event matching the predicate and returns how many there were.
// It takes a single pass over each sequence.
func (q *Queue) RemoveAll(match func(*Event) bool) int {
	n := 0

	for _, s := range []*sequence{&q.high, &q.normal} {
		kept := (*s)[:0]
		removed := 0

		for _, e := range *s {
			if match(e) {
				q.unindex(e)
				e.index = -1
				removed++

				continue
			}

			e.index = len(kept)
			kept = append(kept, e)
		}

		if removed > 0 {
			clear((*s)[len(kept):])
			*s = kept
			heap.Init(s)
			n += removed
		}
	}

	return n
}

// RemoveEvent deletes the queued event e and reports whether e was queued.
func (q *Queue) RemoveEvent(e *Event) bool {
	s := q.sequence(e.Priority)
	if !s.holds(e) {
		return false
	}

	heap.Remove(s, e.index)
	q.unindex(e)

	return true
}

// Reschedule moves the queued event e to run at t and reports whether e was queued.
func (q *Queue) Reschedule(e *Event, t time.Time) bool {
	s := q.sequence(e.Priority)
	if !s.holds(e) {
		return false
	}

	e.RunTime = t
	heap.Fix(s, e.index)

	return true
}

// CheckEvent returns the earliest queued host or service check event of k, or nil.
func (q *Queue) CheckEvent(k objects.Key) *Event {
	var earliest *Event
	for _, e := range q.checks[k] {
		if earliest == nil || e.before(earliest) {
			earliest = e
		}
	}

	return earliest
}

// DowntimeEvents returns the queued events of the downtime id in no particular order.
func (q *Queue) DowntimeEvents(id uint64) []*Event {
	return append([]*Event(nil), q.downtimes[id]...)
}

// Select returns the queued events matching the predicate ordered as Pop would return them.
// Only the matching events are sorted.
func (q *Queue) Select(match func(*Event) bool) []*Event {
	var selected []*Event
	for _, s := range []sequence{q.high, q.normal} {
		for _, e := range s {
			if match(e) {
				selected = append(selected, e)
			}
		}
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].before(selected[j])
	})

	return selected
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.normal) + len(q.high)
}

// LenOf returns the number of queued events of priority p.
func (q *Queue) LenOf(p Priority) int {
	return len(*q.sequence(p))
}

// Events returns all queued events ordered as Pop would return them.
func (q *Queue) Events() []*Event {
	return q.Select(func(*Event) bool { return true })
}

// Next returns the run time of the earliest event and whether there is one.
func (q *Queue) Next() (time.Time, bool) {
	if e := q.Peek(); e != nil {
		return e.RunTime, true
	}

	return time.Time{}, false
}

// Clear drops all events.
func (q *Queue) Clear() {
	q.normal = nil
	q.high = nil
	q.checks = map[objects.Key][]*Event{}
	q.downtimes = map[uint64][]*Event{}
}

func (q *Queue) index(e *Event) {
	if e.isCheck() {
		q.checks[e.Target] = append(q.checks[e.Target], e)
	}

	if e.DowntimeID != 0 {
		q.downtimes[e.DowntimeID] = append(q.downtimes[e.DowntimeID], e)
	}
}

func (q *Queue) unindex(e *Event) {
	if e.isCheck() {
		if rest := without(q.checks[e.Target], e); len(rest) > 0 {
			q.checks[e.Target] = rest
		} else {
			delete(q.checks, e.Target)
		}
	}

	if e.DowntimeID != 0 {
		if rest := without(q.downtimes[e.DowntimeID], e); len(rest) > 0 {
			q.downtimes[e.DowntimeID] = rest
		} else {
			delete(q.downtimes, e.DowntimeID)
		}
	}
}

// without removes e from list, not preserving the order.
func without(list []*Event, e *Event) []*Event {
	for i, x := range list {
		if x == e {
			last := len(list) - 1
			list[i] = list[last]
			list[last] = nil

			return list[:last]
		}
	}

	return list
}

func (q *Queue) sequence(p Priority) *sequence {
	if p == High {
		return &q.high
	}

	return &q.normal
}

func (q *Queue) earliest() *sequence {
	switch {
	case len(q.high) == 0 && len(q.normal) == 0:
		return nil
	case len(q.normal) == 0:
		return &q.high
	case len(q.high) == 0:
		return &q.normal
	case q.normal[0].RunTime.Before(q.high[0].RunTime):
		return &q.normal
	default:
		return &q.high
	}
}

// before orders by run time, then high priority first, then insertion.
func (e *Event) before(other *Event) bool {
	if !e.RunTime.Equal(other.RunTime) {
		return e.RunTime.Before(other.RunTime)
	}

	if e.Priority != other.Priority {
		return e.Priority == High
	}

	return e.seq < other.seq
}

func (e *Event) isCheck() bool {
	return e.Type == ServiceCheck || e.Type == HostCheck
}

// sequence implements heap.Interface.
type sequence []*Event

// holds reports whether e is queued in s.
func (s sequence) holds(e *Event) bool {
	return e.index >= 0 && e.index < len(s) && s[e.index] == e
}

func (s sequence) Len() int {
	return len(s)
}

func (s sequence) Less(i, j int) bool {
	return s[i].before(s[j])
}

func (s sequence) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
	s[i].index = i
	s[j].index = j
}

func (s *sequence) Push(x any) {
	e := x.(*Event)
	e.index = len(*s)
	*s = append(*s, e)
}

func (s *sequence) Pop() any {
	old := *s
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*s = old[:n-1]

	return e
}
