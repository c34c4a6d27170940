package events

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/stretchr/testify/require"
	"math/rand"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func TestQueue_MinFirst(t *testing.T) {
	q := NewQueue()
	r := rand.New(rand.NewSource(1))

	for round := 0; round < 50; round++ {
		for i := 0; i < 1+r.Intn(5); i++ {
			p := Normal
			if r.Intn(3) == 0 {
				p = High
			}

			q.Schedule(&Event{Type: ServiceCheck, RunTime: at(r.Intn(100)), Priority: p})
		}

		for i := 0; i < r.Intn(4) && q.Len() > 0; i++ {
			popped := q.Pop()
			for _, e := range q.Events() {
				require.False(t, e.RunTime.Before(popped.RunTime), "popped %s after %s", popped.RunTime, e.RunTime)
			}
		}
	}
}

func TestQueue_Ties(t *testing.T) {
	q := NewQueue()

	first := &Event{Type: HostCheck, RunTime: at(10), Target: objects.HostKey("a")}
	second := &Event{Type: HostCheck, RunTime: at(10), Target: objects.HostKey("b")}
	high := &Event{Type: CheckReaper, RunTime: at(10), Priority: High}
	early := &Event{Type: ServiceCheck, RunTime: at(5)}

	q.Schedule(first)
	q.Schedule(second)
	q.Schedule(high)
	q.Schedule(early)

	require.Same(t, early, q.Peek())

	var popped []*Event
	for q.Len() > 0 {
		popped = append(popped, q.Pop())
	}

	require.Equal(t, []*Event{early, high, first, second}, popped)
	require.Nil(t, q.Pop())
	require.Nil(t, q.Peek())
}

func TestQueue_Remove(t *testing.T) {
	q := NewQueue()

	q.Schedule(&Event{Type: ScheduledDowntime, RunTime: at(30), DowntimeID: 1})
	q.Schedule(&Event{Type: ScheduledDowntime, RunTime: at(20), DowntimeID: 2})
	q.Schedule(&Event{Type: ExpireDowntime, RunTime: at(40), DowntimeID: 2})
	q.Schedule(&Event{Type: StatusSave, RunTime: at(10), Recurring: true, Interval: time.Minute, Priority: High})

	byDowntime := func(id uint64) func(*Event) bool {
		return func(e *Event) bool { return e.DowntimeID == id }
	}

	require.True(t, q.Remove(byDowntime(2)))
	require.Equal(t, 3, q.Len())

	require.Equal(t, 1, q.RemoveAll(byDowntime(2)))
	require.False(t, q.Remove(byDowntime(2)))

	expected := []*Event{
		{Type: StatusSave, RunTime: at(10), Recurring: true, Interval: time.Minute, Priority: High},
		{Type: ScheduledDowntime, RunTime: at(30), DowntimeID: 1},
	}

	if diff := cmp.Diff(expected, q.Events(), cmpopts.IgnoreUnexported(Event{})); diff != "" {
		t.Errorf("unexpected queue contents (-want +got):\n%s", diff)
	}

	require.Equal(t, 1, q.LenOf(High))
	require.Equal(t, 1, q.LenOf(Normal))
}

func TestEvent_Next(t *testing.T) {
	e := &Event{Type: CheckReaper, RunTime: at(0), Recurring: true, Interval: 10 * time.Second, Priority: High}

	next := e.Next(at(3))
	require.Equal(t, at(13), next.RunTime)
	require.Equal(t, e.Type, next.Type)
	require.True(t, next.Recurring)
	require.Equal(t, High, next.Priority)
}

func TestQueue_Reschedule(t *testing.T) {
	q := NewQueue()

	a := &Event{Type: HostCheck, RunTime: at(10), Target: objects.HostKey("a")}
	b := &Event{Type: HostCheck, RunTime: at(20), Target: objects.HostKey("b")}
	q.Schedule(a)
	q.Schedule(b)

	require.True(t, q.Reschedule(a, at(30)))
	require.Same(t, b, q.Pop())
	require.Same(t, a, q.Pop())

	require.False(t, q.Reschedule(a, at(40)), "no longer queued")
}

func TestQueue_RemoveAll_Many(t *testing.T) {
	q := NewQueue()
	r := rand.New(rand.NewSource(2))

	const n = 20000
	for i := 0; i < n; i++ {
		q.Schedule(&Event{
			Type:       ScheduledDowntime,
			RunTime:    at(r.Intn(n)),
			DowntimeID: uint64(i%4 + 1),
			Priority:   Priority(i % 2),
		})
	}

	require.Equal(t, n/4, q.RemoveAll(func(e *Event) bool { return e.DowntimeID == 3 }))
	require.Equal(t, n-n/4, q.Len())
	require.Empty(t, q.DowntimeEvents(3))
	require.Len(t, q.DowntimeEvents(1), n/4)

	var last *Event
	for q.Len() > 0 {
		e := q.Pop()
		require.NotEqual(t, uint64(3), e.DowntimeID)

		if last != nil {
			require.False(t, e.RunTime.Before(last.RunTime), "popped %s after %s", e.RunTime, last.RunTime)
		}

		last = e
	}

	require.Empty(t, q.DowntimeEvents(1))
}

func TestQueue_CheckEvent(t *testing.T) {
	q := NewQueue()
	http := objects.ServiceKey("server1", "http")

	late := &Event{Type: ServiceCheck, RunTime: at(60), Target: http}
	early := &Event{Type: ServiceCheck, RunTime: at(30), Target: http}
	other := &Event{Type: HostCheck, RunTime: at(10), Target: objects.HostKey("server1")}
	q.Schedule(late)
	q.Schedule(early)
	q.Schedule(other)
	q.Schedule(&Event{Type: ServiceFreshnessCheck, RunTime: at(5), Target: http})

	require.Same(t, early, q.CheckEvent(http))
	require.Same(t, other, q.CheckEvent(objects.HostKey("server1")))
	require.Nil(t, q.CheckEvent(objects.HostKey("server2")))

	require.True(t, q.Reschedule(early, at(90)))
	require.Same(t, late, q.CheckEvent(http))

	require.True(t, q.RemoveEvent(late))
	require.False(t, q.RemoveEvent(late), "already removed")
	require.Same(t, early, q.CheckEvent(http))

	for q.Len() > 0 {
		q.Pop()
	}

	require.Nil(t, q.CheckEvent(http))
	require.Nil(t, q.CheckEvent(objects.HostKey("server1")))
}

func TestQueue_DowntimeEvents(t *testing.T) {
	q := NewQueue()

	start := &Event{Type: ScheduledDowntime, RunTime: at(10), DowntimeID: 7}
	expire := &Event{Type: ExpireDowntime, RunTime: at(20), DowntimeID: 7}
	q.Schedule(start)
	q.Schedule(expire)
	q.Schedule(&Event{Type: ScheduledDowntime, RunTime: at(15), DowntimeID: 8})

	require.ElementsMatch(t, []*Event{start, expire}, q.DowntimeEvents(7))

	require.True(t, q.RemoveEvent(start))
	require.Equal(t, []*Event{expire}, q.DowntimeEvents(7))
	require.Equal(t, 2, q.Len())

	q.Clear()
	require.Empty(t, q.DowntimeEvents(7))
	require.Empty(t, q.DowntimeEvents(8))
}

func TestQueue_Select(t *testing.T) {
	q := NewQueue()

	a := &Event{Type: HostCheck, RunTime: at(30), Target: objects.HostKey("a")}
	b := &Event{Type: HostCheck, RunTime: at(10), Target: objects.HostKey("b")}
	c := &Event{Type: HostCheck, RunTime: at(10), Target: objects.HostKey("c"), Priority: High}
	q.Schedule(a)
	q.Schedule(b)
	q.Schedule(c)
	q.Schedule(&Event{Type: StatusSave, RunTime: at(0), Priority: High})

	selected := q.Select(func(e *Event) bool { return e.Type == HostCheck })
	require.Equal(t, []*Event{c, b, a}, selected)
	require.Equal(t, 4, q.Len())
}
