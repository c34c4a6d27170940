package objects

import (
	"github.com/icinga/icingacore/pkg/types"
	"github.com/pkg/errors"
	"strings"
)

// StateMask is a set of States, used for dependency fail-on criteria.
type StateMask uint16

// StatePending is the pseudo state of an object that has not been checked yet.
// It is only meaningful inside a StateMask.
const StatePending State = 15

// Has reports whether s is in m.
func (m StateMask) Has(s State) bool {
	return m&(1<<s) != 0
}

// With returns m plus s.
func (m StateMask) With(s State) StateMask {
	return m | 1<<s
}

// ParseStateMask parses fail-on flags like "w,u,c" in the context of the master's kind.
// Hosts know o(k), d(own), u(nreachable), p(ending); services o(k), w(arning),
// u(nknown), c(ritical), p(ending). n(one) is valid alone.
func ParseStateMask(master Key, s string) (StateMask, error) {
	var flags map[string]State
	if master.IsService() {
		flags = map[string]State{"o": ServiceOK, "w": ServiceWarning, "c": ServiceCritical, "u": ServiceUnknown, "p": StatePending}
	} else {
		flags = map[string]State{"o": HostUp, "d": HostDown, "u": HostUnreachable, "p": StatePending}
	}

	var m StateMask
	for _, flag := range strings.Split(s, ",") {
		flag = strings.TrimSpace(flag)
		switch flag {
		case "", "n":
			continue
		}

		state, ok := flags[flag]
		if !ok {
			return 0, errors.Errorf("invalid %s state flag %q", master.Kind(), flag)
		}

		m = m.With(state)
	}

	return m, nil
}

// Dependency is a directed edge between two monitored objects:
// Dependent is affected when Master is in one of the FailOn states.
type Dependency struct {
	Dependent      Key
	Master         Key
	Type           types.DependencyType
	FailOn         StateMask
	InheritsParent bool

	// Period restricts when the dependency applies. Empty means always.
	Period string

	// Transient flags of the cycle checker, reset between validation passes.
	CircularPathChecked  bool
	ContainsCircularPath bool
}

// String implements the fmt.Stringer interface.
func (d *Dependency) String() string {
	return d.Type.String() + " dependency " + d.Dependent.String() + " -> " + d.Master.String()
}
