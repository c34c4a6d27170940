package dependency

import (
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ErrCircular is wrapped by the errors Validate returns for edges on a cycle.
var ErrCircular = errors.New("circular dependency")

// HasCircularPath reports whether root lies on a cycle of the edges in deps,
// which must all be of root's type.
//
// The walk memoizes on the edges' CircularPathChecked and ContainsCircularPath flags.
// CircularPathChecked must be reset (see ResetChecked) before each independent pass.
func HasCircularPath(root *objects.Dependency, deps []*objects.Dependency) bool {
	byDependent := make(map[objects.Key][]*objects.Dependency, len(deps))
	for _, d := range deps {
		byDependent[d.Dependent] = append(byDependent[d.Dependent], d)
	}

	stack := []*objects.Dependency{root}
	for len(stack) > 0 {
		dep := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if dep.ContainsCircularPath {
			return true
		}

		if dep.CircularPathChecked {
			continue
		}

		dep.CircularPathChecked = true

		if dep != root && root.Dependent == dep.Master {
			root.ContainsCircularPath = true
			dep.ContainsCircularPath = true

			return true
		}

		if dep.Type == types.DependencyNotification && !dep.InheritsParent {
			continue
		}

		// Walk up the chain: the edges the master itself depends through.
		stack = append(stack, byDependent[dep.Master]...)
	}

	return false
}

// ResetChecked clears CircularPathChecked on every edge.
func ResetChecked(deps []*objects.Dependency) {
	for _, d := range deps {
		d.CircularPathChecked = false
	}
}

// Reset clears both cycle detection flags on every edge.
func Reset(deps []*objects.Dependency) {
	for _, d := range deps {
		d.CircularPathChecked = false
		d.ContainsCircularPath = false
	}
}

// Validate runs the cycle check for every edge of the store, one dependency type at a time,
// and returns all edges found on a cycle as one error.
func Validate(store *objects.Store, logger *logging.Logger) error {
	var errs error

	for _, t := range []types.DependencyType{types.DependencyExecution, types.DependencyNotification} {
		deps := store.Dependencies(t)
		Reset(deps)

		for _, d := range deps {
			ResetChecked(deps)

			if HasCircularPath(d, deps) {
				logger.Errorw("Circular dependency detected",
					"type", t, "dependent", d.Dependent, "master", d.Master)

				errs = multierr.Append(errs, errors.Wrapf(ErrCircular, "%s", d))
			}
		}

		logger.Debugf("Checked %d %s dependencies for circular paths", len(deps), t)
	}

	return errs
}
