package flapping

import (
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/types"
)

const (
	entries = objects.MaxStateHistoryEntries

	oldestWeight = 0.75
	newestWeight = 1.25
)

// Record appends state to the object's state history and recomputes its percent state change.
// Soft problem states of services aren't recorded. An empty history is filled with state first.
// It reports whether the state was recorded.
func Record(c *objects.Checkable, state objects.State, stateType types.StateType) bool {
	if c.Key.IsService() && stateType == types.StateSoft && state != objects.ServiceOK {
		return false
	}

	f := &c.Flapping
	if f.HistoryCount == 0 {
		for i := range f.History {
			f.History[i] = state
		}
	}

	f.History[f.HistoryIndex] = state
	f.HistoryIndex = (f.HistoryIndex + 1) % entries

	if f.HistoryCount < entries {
		f.HistoryCount++
	}

	c.PercentStateChange = PercentStateChange(&f.History, f.HistoryIndex)

	return true
}

// PercentStateChange computes the weighted share of state changes in the circular history,
// oldest entry at index oldest. Recent changes weigh up to 1.25, old ones down to 0.75.
func PercentStateChange(history *[entries]objects.State, oldest int) float64 {
	var changes float64

	for x := 1; x < entries; x++ {
		this := (oldest + x) % entries
		prev := (oldest + x - 1) % entries

		if history[this] != history[prev] {
			changes += float64(x-1)*(newestWeight-oldestWeight)/float64(entries-2) + oldestWeight
		}
	}

	return changes * 100 / float64(entries-1)
}
