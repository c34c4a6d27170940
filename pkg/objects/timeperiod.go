package objects

import (
	"github.com/pkg/errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// maxTimeperiodLookahead bounds the search for the next valid time.
const maxTimeperiodLookahead = 366 * 24 * time.Hour

// TimeRange is a range within a day, as offsets from midnight. End may be 24h.
type TimeRange struct {
	Start time.Duration
	End   time.Duration
}

// Timeperiod is a weekly schedule of valid time ranges
// minus the ranges of the timeperiods it excludes.
type Timeperiod struct {
	Name string

	// Weekdays is indexed by time.Weekday.
	Weekdays [7][]TimeRange

	// Exclude names the timeperiods subtracted from this one.
	Exclude []string

	excluded []*Timeperiod
}

// ParseTimeRanges parses "HH:MM-HH:MM,HH:MM-HH:MM,..." into TimeRanges sorted by start.
func ParseTimeRanges(s string) ([]TimeRange, error) {
	var ranges []TimeRange

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		from, to, ok := strings.Cut(part, "-")
		if !ok {
			return nil, errors.Errorf("invalid time range %q", part)
		}

		start, err := parseClock(from)
		if err != nil {
			return nil, err
		}

		end, err := parseClock(to)
		if err != nil {
			return nil, err
		}

		if start >= end {
			return nil, errors.Errorf("time range %q ends before it starts", part)
		}

		ranges = append(ranges, TimeRange{Start: start, End: end})
	}

	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Start < ranges[j].Start
	})

	return ranges, nil
}

func parseClock(s string) (time.Duration, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, errors.Errorf("invalid time of day %q", s)
	}

	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid hour in %q", s)
	}

	minutes, err := strconv.Atoi(m)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid minute in %q", s)
	}

	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if hours < 0 || minutes < 0 || minutes > 59 || d > 24*time.Hour {
		return 0, errors.Errorf("time of day %q out of range", s)
	}

	return d, nil
}

// Contains reports whether t is valid in tp. A nil Timeperiod is always valid.
func (tp *Timeperiod) Contains(t time.Time) bool {
	if tp == nil {
		return true
	}

	if _, ok := tp.rangeContaining(t); !ok {
		return false
	}

	for _, ex := range tp.excluded {
		if ex.Contains(t) {
			return false
		}
	}

	return true
}

// NextValidTime returns the earliest time at or after t that is valid in tp.
// ok is false if there is none within a year.
func (tp *Timeperiod) NextValidTime(t time.Time) (next time.Time, ok bool) {
	if tp == nil {
		return t, true
	}

	limit := t.Add(maxTimeperiodLookahead)

	for candidate := t; candidate.Before(limit); {
		next, ok = tp.nextInRanges(candidate)
		if !ok {
			return time.Time{}, false
		}

		blocked := false
		for _, ex := range tp.excluded {
			if ex.Contains(next) {
				end, _ := ex.rangeContaining(next)
				candidate = end
				blocked = true

				break
			}
		}

		if !blocked {
			return next, true
		}
	}

	return time.Time{}, false
}

// rangeContaining returns the end of the own (non-excluded) range containing t.
func (tp *Timeperiod) rangeContaining(t time.Time) (end time.Time, ok bool) {
	day := midnight(t)
	for _, r := range tp.Weekdays[day.Weekday()] {
		s, e := day.Add(r.Start), day.Add(r.End)
		if !t.Before(s) && t.Before(e) {
			return e, true
		}
	}

	return time.Time{}, false
}

// nextInRanges returns the earliest time at or after t within the own ranges, ignoring exclusions.
func (tp *Timeperiod) nextInRanges(t time.Time) (time.Time, bool) {
	day := midnight(t)

	// A full week plus one day covers every weekday, including today's remainder next week.
	for i := 0; i <= 7; i++ {
		for _, r := range tp.Weekdays[day.Weekday()] {
			s, e := day.Add(r.Start), day.Add(r.End)
			if !t.Before(e) {
				continue
			}

			if t.Before(s) {
				return s, true
			}

			return t, true
		}

		day = day.AddDate(0, 0, 1)
	}

	return time.Time{}, false
}

// resolve links the excluded timeperiods by name.
func (tp *Timeperiod) resolve(lookup func(string) *Timeperiod) error {
	tp.excluded = tp.excluded[:0]
	for _, name := range tp.Exclude {
		ex := lookup(name)
		if ex == nil {
			return errors.Wrapf(ErrUnknownTimeperiod, "timeperiod %q excludes %q", tp.Name, name)
		}

		if ex == tp {
			return errors.Errorf("timeperiod %q excludes itself", tp.Name)
		}

		tp.excluded = append(tp.excluded, ex)
	}

	return nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
