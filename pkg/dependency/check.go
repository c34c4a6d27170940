package dependency

import (
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/types"
	"time"
)

// Result is the outcome of evaluating an object's dependencies.
type Result uint8

const (
	OK Result = iota
	Failed
)

// String implements the fmt.Stringer interface.
func (r Result) String() string {
	if r == Failed {
		return "failed"
	}

	return "ok"
}

// Check evaluates the dependencies of type t of the object k at now.
// A dependency fails if its master is in one of its fail-on states.
// Dependencies outside their period are ignored.
// Inheriting dependencies also fail if the master's own dependencies fail.
func Check(store *objects.Store, k objects.Key, t types.DependencyType, now time.Time) Result {
	visited := map[objects.Key]struct{}{}
	pending := []objects.Key{k}

	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if _, ok := visited[current]; ok {
			continue
		}

		visited[current] = struct{}{}

		for _, d := range store.DependenciesOf(current, t) {
			if d.Period != "" && !store.Timeperiod(d.Period).Contains(now) {
				continue
			}

			master := store.Checkable(d.Master)
			if master == nil {
				continue
			}

			if d.FailOn.Has(effectiveState(master)) {
				return Failed
			}

			if d.InheritsParent {
				pending = append(pending, d.Master)
			}
		}
	}

	return OK
}

// effectiveState is the state dependencies are judged by:
// the last hard state while in a soft state, pending if never checked.
func effectiveState(c *objects.Checkable) objects.State {
	if c.LastCheck.IsZero() {
		return objects.StatePending
	}

	if c.StateType == types.StateSoft {
		return c.LastHardState
	}

	return c.CurrentState
}
