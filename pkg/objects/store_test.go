package objects

import (
	"github.com/icinga/icingacore/pkg/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestStore_Add(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.AddHost(NewHost("web1")))
	require.True(t, errors.Is(s.AddHost(NewHost("web1")), ErrDuplicateObject))

	require.NoError(t, s.AddService(NewService("web1", "http")))
	require.True(t, errors.Is(s.AddService(NewService("web1", "http")), ErrDuplicateObject))
	require.True(t, errors.Is(s.AddService(NewService("web2", "http")), ErrUnknownObject))

	h := NewHost("db1")
	h.CheckPeriod = "workhours"
	require.True(t, errors.Is(s.AddHost(h), ErrUnknownTimeperiod))
	require.Nil(t, s.Host("db1"))

	require.NotNil(t, s.Checkable(HostKey("web1")))
	require.NotNil(t, s.Checkable(ServiceKey("web1", "http")))
	require.Nil(t, s.Checkable(ServiceKey("web1", "ssh")))
	require.Len(t, s.ServicesOf("web1"), 1)
}

func TestStore_AddDependency(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddHost(NewHost("router")))
	require.NoError(t, s.AddHost(NewHost("web1")))

	d := &Dependency{Dependent: HostKey("web1"), Master: HostKey("router"), Type: types.DependencyExecution}
	require.NoError(t, s.AddDependency(d))

	missing := &Dependency{Dependent: HostKey("web2"), Master: HostKey("router"), Type: types.DependencyExecution}
	require.True(t, errors.Is(s.AddDependency(missing), ErrUnknownObject))

	require.Len(t, s.Dependencies(types.DependencyExecution), 1)
	require.Empty(t, s.Dependencies(types.DependencyNotification))
	require.Equal(t, []*Dependency{d}, s.DependenciesOf(HostKey("web1"), types.DependencyExecution))
}

func TestParseStateMask(t *testing.T) {
	m, err := ParseStateMask(ServiceKey("h", "s"), "w,c,p")
	require.NoError(t, err)
	require.True(t, m.Has(ServiceWarning))
	require.True(t, m.Has(ServiceCritical))
	require.True(t, m.Has(StatePending))
	require.False(t, m.Has(ServiceOK))

	m, err = ParseStateMask(HostKey("h"), "d,u")
	require.NoError(t, err)
	require.True(t, m.Has(HostDown))
	require.True(t, m.Has(HostUnreachable))

	m, err = ParseStateMask(HostKey("h"), "n")
	require.NoError(t, err)
	require.Zero(t, m)

	_, err = ParseStateMask(HostKey("h"), "w")
	require.Error(t, err)
}
