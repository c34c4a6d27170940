package engine

import (
	"context"
	"github.com/creasty/defaults"
	"github.com/icinga/icingacore/pkg/broker"
	"github.com/icinga/icingacore/pkg/downtime"
	"github.com/icinga/icingacore/pkg/events"
	"github.com/icinga/icingacore/pkg/extcmd"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/notify"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/retention"
	"github.com/icinga/icingacore/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"path/filepath"
	"testing"
	"time"
)

var start = time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

type testLoggers struct {
	t *testing.T
}

func (l testLoggers) GetChildLogger(name string) *logging.Logger {
	return logging.NewLogger(zaptest.NewLogger(l.t).Sugar().Named(name), time.Hour)
}

type recorder struct {
	payloads []broker.Payload
	override bool
}

func (r *recorder) Dispatch(p broker.Payload) broker.Result {
	r.payloads = append(r.payloads, p)

	if ce, ok := p.(*broker.CheckEvent); ok && ce.Phase == broker.CheckInitiate && r.override {
		return broker.Override
	}

	return broker.OK
}

func newStore(t *testing.T, services ...string) *objects.Store {
	t.Helper()

	store := objects.NewStore()

	h := objects.NewHost("server1")
	h.CheckInterval = 5 * time.Minute
	require.NoError(t, store.AddHost(h))

	for _, name := range services {
		svc := objects.NewService("server1", name)
		svc.CheckInterval = time.Minute
		svc.RetryInterval = 30 * time.Second
		svc.MaxAttempts = 3
		require.NoError(t, store.AddService(svc))
	}

	require.NoError(t, store.Resolve())

	return store
}

type testEngine struct {
	*Engine
	broker   *recorder
	notifier *notify.Recorder
	checks   []Check
}

func newTestEngine(t *testing.T, store *objects.Store) *testEngine {
	t.Helper()

	options := &Options{}
	require.NoError(t, defaults.Set(options))

	te := &testEngine{broker: &recorder{}, notifier: &notify.Recorder{}}
	te.Engine = New(store, options, te.broker, te.notifier, testLoggers{t})
	te.SetExecutor(ExecutorFunc(func(c Check) { te.checks = append(te.checks, c) }))

	return te
}

func (te *testEngine) checked(k objects.Key) int {
	n := 0
	for _, c := range te.checks {
		if c.Key == k {
			n++
		}
	}

	return n
}

func TestEngine_Start(t *testing.T) {
	e := newTestEngine(t, newStore(t, "http", "ssh"))
	require.NoError(t, e.Start(context.Background(), start))

	info := e.Info()
	require.Equal(t, 2, info.InterleaveFactor)
	require.Equal(t, 30*time.Second, info.ServiceInterCheckDelay)

	require.Equal(t, start.Add(30*time.Second), e.Store().Service("server1", "http").NextCheck)
	require.Equal(t, start.Add(time.Minute), e.Store().Service("server1", "ssh").NextCheck)
	require.Equal(t, start, e.Store().Host("server1").NextCheck)

	stats := e.Stats()
	require.Equal(t, 1, stats.ScheduledHosts)
	require.Equal(t, 2, stats.ScheduledServices)
	require.Equal(t, 2, stats.QueuedHigh)
}

func TestEngine_ActiveChecks(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newStore(t, "http", "ssh"))
	require.NoError(t, e.Start(ctx, start))

	http := e.Store().Service("server1", "http")

	e.Step(ctx, start)
	require.Equal(t, 1, e.checked(objects.HostKey("server1")))
	require.True(t, e.Store().Host("server1").IsExecuting)

	critical := func(at time.Time) {
		e.SubmitResult(objects.CheckResult{Key: http.Key, State: objects.ServiceCritical, Start: at, Finish: at.Add(time.Second)})
		require.Equal(t, 1, e.Reap(at.Add(time.Second)))
	}

	e.Step(ctx, start.Add(30*time.Second))
	require.Equal(t, 1, e.checked(http.Key))
	require.True(t, http.IsExecuting)

	critical(start.Add(30 * time.Second))
	require.False(t, http.IsExecuting)
	require.Equal(t, types.StateSoft, http.StateType)
	require.Equal(t, 1, http.CurrentAttempt)
	require.Equal(t, start.Add(time.Minute), http.NextCheck)

	e.Step(ctx, start.Add(time.Minute))
	require.Equal(t, 2, e.checked(http.Key))
	require.Equal(t, 1, e.checked(objects.ServiceKey("server1", "ssh")))

	critical(start.Add(time.Minute))
	require.Equal(t, types.StateSoft, http.StateType)
	require.Equal(t, 2, http.CurrentAttempt)

	e.Step(ctx, start.Add(90*time.Second))
	critical(start.Add(90 * time.Second))
	require.Equal(t, types.StateHard, http.StateType)
	require.Equal(t, 3, http.CurrentAttempt)
	require.Equal(t, objects.ServiceCritical, http.LastHardState)
	require.Equal(t, start.Add(150*time.Second), http.NextCheck)

	e.SubmitResult(objects.CheckResult{Key: http.Key, State: objects.ServiceOK, Passive: true})
	e.Reap(start.Add(100 * time.Second))
	require.Equal(t, types.StateHard, http.StateType)
	require.Equal(t, 1, http.CurrentAttempt)
	require.Equal(t, start.Add(150*time.Second), http.NextCheck, "passive results don't reschedule")

	var processed int
	for _, p := range e.broker.payloads {
		if ce, ok := p.(*broker.CheckEvent); ok && ce.Phase == broker.CheckProcessed {
			processed++
		}
	}
	require.Equal(t, 4, processed)
	require.NotZero(t, e.Stats().Handled[events.ServiceCheck])
}

func TestEngine_Override(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newStore(t, "http"))
	e.broker.override = true
	require.NoError(t, e.Start(ctx, start))

	e.Step(ctx, start)
	require.Empty(t, e.checks)
	require.Equal(t, start.Add(5*time.Minute), e.Store().Host("server1").NextCheck)
}

func TestEngine_ExecutionDependency(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "http")

	h := store.Host("server1")
	h.CurrentState = objects.HostDown
	h.LastHardState = objects.HostDown
	h.LastCheck = start.Add(-time.Minute)

	mask, err := objects.ParseStateMask(h.Key, "d")
	require.NoError(t, err)
	require.NoError(t, store.AddDependency(&objects.Dependency{
		Dependent: objects.ServiceKey("server1", "http"),
		Master:    h.Key,
		Type:      types.DependencyExecution,
		FailOn:    mask,
	}))

	e := newTestEngine(t, store)
	e.SetExecutor(ExecutorFunc(func(c Check) {
		if c.Key.IsService() {
			e.checks = append(e.checks, c)
		}
	}))
	require.NoError(t, e.Start(ctx, start))

	http := store.Service("server1", "http")
	next := http.NextCheck

	e.Step(ctx, next)
	require.Empty(t, e.checks)
	require.False(t, http.IsExecuting)
	require.Equal(t, next.Add(time.Minute), http.NextCheck)
}

func TestEngine_FlexibleDowntime(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newStore(t, "http"))
	require.NoError(t, e.Start(ctx, start))

	http := e.Store().Service("server1", "http")

	id, err := e.ScheduleDowntime(downtime.Request{
		Target:    http.Key,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Duration:  10 * time.Minute,
		Author:    "admin",
		Comment:   "flexible",
	}, start)
	require.NoError(t, err)

	e.Step(ctx, start)
	require.Equal(t, 1, http.PendingFlexDowntime)
	require.Zero(t, http.ScheduledDowntimeDepth)

	e.ProcessResult(objects.CheckResult{Key: http.Key, State: objects.ServiceCritical, Passive: true}, start.Add(5*time.Minute))
	require.True(t, e.Downtimes().Get(id).IsInEffect)
	require.Equal(t, 1, http.ScheduledDowntimeDepth)
	require.Contains(t, e.notifier.Types(), types.NotificationDowntimeStart)

	e.Step(ctx, start.Add(15*time.Minute))
	require.Nil(t, e.Downtimes().Get(id))
	require.Zero(t, http.ScheduledDowntimeDepth)
	require.Zero(t, http.PendingFlexDowntime)
}

func TestEngine_FlexibleDowntime_ActivatedBeforeStartEvent(t *testing.T) {
	subtests := []struct {
		name   string
		submit func(e *testEngine, r objects.CheckResult)
	}{
		{"reaped", func(e *testEngine, r objects.CheckResult) {
			e.SubmitResult(r)
		}},
		{"at_start_time", func(e *testEngine, r objects.CheckResult) {
			e.ProcessResult(r, start.Add(15*time.Second))
		}},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			ctx := context.Background()
			e := newTestEngine(t, newStore(t, "http"))
			require.NoError(t, e.Start(ctx, start))

			http := e.Store().Service("server1", "http")

			id, err := e.ScheduleDowntime(downtime.Request{
				Target:    http.Key,
				StartTime: start.Add(15 * time.Second),
				EndTime:   start.Add(time.Hour),
				Duration:  30 * time.Minute,
			}, start)
			require.NoError(t, err)

			st.submit(e, objects.CheckResult{
				Key: http.Key, State: objects.ServiceCritical, Start: start, Finish: start, Passive: true,
			})
			e.Step(ctx, start.Add(20*time.Second))

			d := e.Downtimes().Get(id)
			require.NotNil(t, d)
			require.True(t, d.IsInEffect)
			require.Equal(t, 1, http.ScheduledDowntimeDepth)
			require.Contains(t, e.notifier.Types(), types.NotificationDowntimeStart)
			require.NotContains(t, e.notifier.Types(), types.NotificationDowntimeEnd)
		})
	}
}

func TestEngine_Commands(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newStore(t, "http"))
	require.NoError(t, e.Start(ctx, start))

	c, err := extcmd.Parse("[1704456000] SCHEDULE_SVC_DOWNTIME;server1;http;1704456002;1704459600;1;0;0;admin;maintenance")
	require.NoError(t, err)
	require.NoError(t, e.Commands().Push(c))

	e.Step(ctx, start.Add(time.Second))
	require.Equal(t, 1, e.Downtimes().Len())
	require.Equal(t, 0, e.Commands().Len())

	e.Step(ctx, start.Add(2*time.Second))
	require.Equal(t, 1, e.Store().Service("server1", "http").ScheduledDowntimeDepth)
	require.Equal(t, 1, e.Stats().ActiveDowntimes)
}

func TestEngine_Orphans(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newStore(t))
	require.NoError(t, e.Start(ctx, start))

	host := objects.HostKey("server1")

	e.Step(ctx, start)
	require.Equal(t, 1, e.checked(host))

	e.Step(ctx, start.Add(5*time.Minute))
	require.Equal(t, 1, e.checked(host), "check still in progress")

	e.Step(ctx, start.Add(12*time.Minute))
	require.Equal(t, 2, e.checked(host))
	require.True(t, e.Store().Host("server1").IsExecuting)
}

func TestEngine_Reload(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newStore(t, "http", "ssh"))
	require.NoError(t, e.Start(ctx, start))

	old := e.Store().Service("server1", "http")
	old.CurrentState = objects.ServiceWarning
	old.StateType = types.StateHard

	_, err := e.ScheduleDowntime(downtime.Request{
		Target: objects.ServiceKey("server1", "ssh"), StartTime: start, EndTime: start.Add(time.Hour), Fixed: true,
	}, start)
	require.NoError(t, err)
	require.Equal(t, 1, e.Comments().Len())

	store := newStore(t, "http", "smtp")
	require.NoError(t, e.Reload(store, start.Add(10*time.Second)))

	http := store.Service("server1", "http")
	require.Equal(t, objects.ServiceWarning, http.CurrentState)
	require.Equal(t, old.NextCheck, http.NextCheck)
	require.Equal(t, 0, e.Downtimes().Len())
	require.Equal(t, 0, e.Comments().Len())

	for _, ev := range e.Queue().Events() {
		require.NotEqual(t, "ssh", ev.Target.Service)
	}

	require.True(t, store.Service("server1", "smtp").ShouldBeScheduled)
	require.Equal(t, 2, e.Stats().ScheduledServices)

	circular := newStore(t, "http")
	for _, pair := range [][2]objects.Key{
		{objects.ServiceKey("server1", "http"), objects.HostKey("server1")},
		{objects.HostKey("server1"), objects.ServiceKey("server1", "http")},
	} {
		require.NoError(t, circular.AddDependency(&objects.Dependency{
			Dependent: pair[0], Master: pair[1], Type: types.DependencyExecution,
		}))
	}

	require.Error(t, e.Reload(circular, start.Add(20*time.Second)))
	require.Same(t, store, e.Store())
}

func TestEngine_RequestReload(t *testing.T) {
	e := newTestEngine(t, newStore(t, "http"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	store := newStore(t, "http", "ssh")
	require.NoError(t, e.RequestReload(ctx, store))
	require.Same(t, store, e.Store(), "applied once RequestReload returns")

	circular := newStore(t, "http")
	for _, pair := range [][2]objects.Key{
		{objects.ServiceKey("server1", "http"), objects.HostKey("server1")},
		{objects.HostKey("server1"), objects.ServiceKey("server1", "http")},
	} {
		require.NoError(t, circular.AddDependency(&objects.Dependency{
			Dependent: pair[0], Master: pair[1], Type: types.DependencyExecution,
		}))
	}
	require.Error(t, e.RequestReload(ctx, circular))
	require.Same(t, store, e.Store())

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.ErrorIs(t, e.RequestReload(ctx, newStore(t)), context.Canceled)
}

func TestEngine_Retention(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "retention.db")

	db, err := retention.Open(ctx, path, testLoggers{t}.GetChildLogger("retention"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e1 := newTestEngine(t, newStore(t, "http"))
	e1.SetRetention(db)
	require.NoError(t, e1.Start(ctx, start))

	id, err := e1.ScheduleDowntime(downtime.Request{
		Target: objects.ServiceKey("server1", "http"), StartTime: start, EndTime: start.Add(time.Hour), Fixed: true,
		Author: "admin", Comment: "maintenance",
	}, start)
	require.NoError(t, err)

	e1.Step(ctx, start)
	e1.ProcessResult(objects.CheckResult{Key: objects.ServiceKey("server1", "http"), State: objects.ServiceWarning, Passive: true}, start)
	require.NoError(t, e1.SaveRetention(ctx, start))

	e2 := newTestEngine(t, newStore(t, "http"))
	e2.SetRetention(db)
	require.NoError(t, e2.Start(ctx, start.Add(time.Minute)))

	http := e2.Store().Service("server1", "http")
	require.Equal(t, objects.ServiceWarning, http.CurrentState)
	require.Equal(t, 1, http.ScheduledDowntimeDepth)

	d := e2.Downtimes().Get(id)
	require.NotNil(t, d)
	require.True(t, d.IsInEffect)
	require.NotNil(t, e2.Comments().Get(d.CommentID))

	next, err := e2.ScheduleDowntime(downtime.Request{
		Target: objects.ServiceKey("server1", "http"), StartTime: start.Add(2 * time.Hour), EndTime: start.Add(3 * time.Hour), Fixed: true,
	}, start.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, id+1, next)

	e2.Step(ctx, start.Add(time.Hour))
	require.Nil(t, e2.Downtimes().Get(id))
	require.Zero(t, http.ScheduledDowntimeDepth)
}

func TestEngine_Retention_DowntimeWindowPassed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "retention.db")

	db, err := retention.Open(ctx, path, testLoggers{t}.GetChildLogger("retention"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e1 := newTestEngine(t, newStore(t, "http"))
	e1.SetRetention(db)
	require.NoError(t, e1.Start(ctx, start))

	_, err = e1.ScheduleDowntime(downtime.Request{
		Target: objects.HostKey("server1"), StartTime: start.Add(time.Hour), EndTime: start.Add(2 * time.Hour), Fixed: true,
	}, start)
	require.NoError(t, err)
	require.NoError(t, e1.SaveRetention(ctx, start))

	restart := start.Add(3 * time.Hour)
	e2 := newTestEngine(t, newStore(t, "http"))
	e2.SetRetention(db)
	require.NoError(t, e2.Start(ctx, restart))
	require.Zero(t, e2.Downtimes().Len())
	require.Zero(t, e2.Comments().Len())

	e2.Step(ctx, restart)
	require.Empty(t, e2.notifier.Sent())
	require.Zero(t, e2.Store().Host("server1").ScheduledDowntimeDepth)
}
