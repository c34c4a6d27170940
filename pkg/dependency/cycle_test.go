package dependency

import (
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
	"testing"
	"time"
)

func edge(dependent, master string, t types.DependencyType, inherits bool) *objects.Dependency {
	return &objects.Dependency{
		Dependent:      objects.HostKey(dependent),
		Master:         objects.HostKey(master),
		Type:           t,
		InheritsParent: inherits,
	}
}

func verdicts(deps []*objects.Dependency) []bool {
	var v []bool
	for _, d := range deps {
		ResetChecked(deps)
		v = append(v, HasCircularPath(d, deps))
	}

	return v
}

func TestHasCircularPath(t *testing.T) {
	subtests := []struct {
		name   string
		deps   []*objects.Dependency
		output []bool
	}{
		{
			name: "two-cycle",
			deps: []*objects.Dependency{
				edge("a", "b", types.DependencyExecution, true),
				edge("b", "a", types.DependencyExecution, true),
			},
			output: []bool{true, true},
		},
		{
			name: "three-cycle",
			deps: []*objects.Dependency{
				edge("a", "b", types.DependencyExecution, false),
				edge("b", "c", types.DependencyExecution, false),
				edge("c", "a", types.DependencyExecution, false),
			},
			output: []bool{true, true, true},
		},
		{
			name: "dag",
			deps: []*objects.Dependency{
				edge("a", "b", types.DependencyExecution, true),
				edge("a", "c", types.DependencyExecution, true),
				edge("b", "d", types.DependencyExecution, true),
				edge("c", "d", types.DependencyExecution, true),
			},
			output: []bool{false, false, false, false},
		},
		{
			name: "non-inheriting-notification",
			deps: []*objects.Dependency{
				edge("a", "b", types.DependencyNotification, false),
				edge("b", "c", types.DependencyNotification, false),
				edge("c", "a", types.DependencyNotification, false),
			},
			output: []bool{false, false, false},
		},
		{
			name: "inheriting-notification",
			deps: []*objects.Dependency{
				edge("a", "b", types.DependencyNotification, true),
				edge("b", "a", types.DependencyNotification, true),
			},
			output: []bool{true, true},
		},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			require.Equal(t, st.output, verdicts(st.deps))

			// Same verdicts once only the checked flags are reset.
			require.Equal(t, st.output, verdicts(st.deps))

			Reset(st.deps)
			require.Equal(t, st.output, verdicts(st.deps))
		})
	}
}

func TestValidate(t *testing.T) {
	s := objects.NewStore()
	for _, h := range []string{"a", "b", "c"} {
		require.NoError(t, s.AddHost(objects.NewHost(h)))
	}

	require.NoError(t, s.AddDependency(edge("a", "b", types.DependencyExecution, true)))
	require.NoError(t, s.AddDependency(edge("b", "a", types.DependencyExecution, true)))
	require.NoError(t, s.AddDependency(edge("c", "a", types.DependencyNotification, true)))

	logger := logging.NewLogger(zaptest.NewLogger(t).Sugar(), time.Second)

	err := Validate(s, logger)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCircular))
	require.Len(t, multierr.Errors(err), 2)
}

func TestCheck(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	s := objects.NewStore()
	for _, h := range []string{"router", "switch", "web"} {
		host := objects.NewHost(h)
		host.LastCheck = now.Add(-time.Minute)
		require.NoError(t, s.AddHost(host))
	}

	down := objects.StateMask(0).With(objects.HostDown).With(objects.HostUnreachable)

	webOnSwitch := edge("web", "switch", types.DependencyExecution, true)
	webOnSwitch.FailOn = down
	switchOnRouter := edge("switch", "router", types.DependencyExecution, false)
	switchOnRouter.FailOn = down

	require.NoError(t, s.AddDependency(webOnSwitch))
	require.NoError(t, s.AddDependency(switchOnRouter))

	web := objects.HostKey("web")
	require.Equal(t, OK, Check(s, web, types.DependencyExecution, now))

	s.Host("router").CurrentState = objects.HostDown
	require.Equal(t, Failed, Check(s, web, types.DependencyExecution, now), "inherited through switch")
	require.Equal(t, OK, Check(s, web, types.DependencyNotification, now))

	s.Host("router").CurrentState = objects.HostUp
	s.Host("switch").CurrentState = objects.HostDown
	s.Host("switch").StateType = types.StateSoft
	require.Equal(t, OK, Check(s, web, types.DependencyExecution, now), "soft states don't count")

	s.Host("switch").StateType = types.StateHard
	require.Equal(t, Failed, Check(s, web, types.DependencyExecution, now))

	never := &objects.Timeperiod{Name: "never"}
	require.NoError(t, s.AddTimeperiod(never))
	webOnSwitch.Period = "never"
	require.Equal(t, OK, Check(s, web, types.DependencyExecution, now), "outside the dependency period")
}
