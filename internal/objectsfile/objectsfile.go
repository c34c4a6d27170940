// Package objectsfile loads host, service, timeperiod and dependency definitions from YAML.
package objectsfile

import (
	"bytes"
	"github.com/goccy/go-yaml"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/icinga/icingacore/pkg/types"
	"github.com/pkg/errors"
	"io"
	"os"
	"time"
)

// File is the layout of an object definition file.
type File struct {
	Timeperiods  []Timeperiod `yaml:"timeperiods"`
	Hosts        []Host       `yaml:"hosts"`
	Dependencies []Dependency `yaml:"dependencies"`
}

// Timeperiod defines an objects.Timeperiod. Ranges maps lowercase weekday names
// to "HH:MM-HH:MM,..." lists.
type Timeperiod struct {
	Name    string            `yaml:"name"`
	Ranges  map[string]string `yaml:"ranges"`
	Exclude []string          `yaml:"exclude"`
}

// Checkable holds the attributes hosts and services share.
type Checkable struct {
	CheckInterval      time.Duration `yaml:"check_interval"`
	RetryInterval      time.Duration `yaml:"retry_interval"`
	CheckTimeout       time.Duration `yaml:"check_timeout"`
	FreshnessThreshold time.Duration `yaml:"freshness_threshold"`
	MaxAttempts        int           `yaml:"max_attempts"`
	CheckPeriod        string        `yaml:"check_period"`
	ActiveChecks       *bool         `yaml:"active_checks"`
	FlapDetection      *bool         `yaml:"flap_detection"`
	LowFlapThreshold   float64       `yaml:"low_flap_threshold"`
	HighFlapThreshold  float64       `yaml:"high_flap_threshold"`
}

// Host defines an objects.Host and its services.
type Host struct {
	Checkable `yaml:",inline"`

	Name        string    `yaml:"name"`
	DisplayName string    `yaml:"display_name"`
	Address     string    `yaml:"address"`
	Services    []Service `yaml:"services"`
}

// Service defines an objects.Service of the host it is nested in.
type Service struct {
	Checkable `yaml:",inline"`

	Description string `yaml:"description"`
	DisplayName string `yaml:"display_name"`
}

// Dependency defines an objects.Dependency.
type Dependency struct {
	Dependent      objects.Key          `yaml:"dependent"`
	Master         objects.Key          `yaml:"master"`
	Type           types.DependencyType `yaml:"type"`
	FailOn         string               `yaml:"fail_on"`
	InheritsParent bool                 `yaml:"inherits_parent"`
	Period         string               `yaml:"period"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Load reads the object definition file at path into a new store.
func Load(path string) (*objects.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read object file %q", path)
	}

	store, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "can't load object file %q", path)
	}

	return store, nil
}

// Decode parses object definitions from r into a new, resolved store.
// Unknown fields are rejected.
func Decode(r io.Reader) (*objects.Store, error) {
	var f File
	if err := yaml.NewDecoder(r, yaml.DisallowUnknownField()).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "can't parse YAML")
	}

	return f.Store()
}

// Store builds a resolved store from f.
func (f *File) Store() (*objects.Store, error) {
	store := objects.NewStore()

	for _, tp := range f.Timeperiods {
		period := &objects.Timeperiod{Name: tp.Name, Exclude: tp.Exclude}

		for day, spec := range tp.Ranges {
			wd, ok := weekdays[day]
			if !ok {
				return nil, errors.Errorf("timeperiod %q: unknown weekday %q", tp.Name, day)
			}

			ranges, err := objects.ParseTimeRanges(spec)
			if err != nil {
				return nil, errors.Wrapf(err, "timeperiod %q", tp.Name)
			}

			period.Weekdays[wd] = ranges
		}

		if err := store.AddTimeperiod(period); err != nil {
			return nil, err
		}
	}

	for _, hd := range f.Hosts {
		h := objects.NewHost(hd.Name)
		h.DisplayName = hd.DisplayName
		h.Address = hd.Address
		hd.Checkable.apply(&h.Checkable)

		if err := store.AddHost(h); err != nil {
			return nil, err
		}

		for _, sd := range hd.Services {
			svc := objects.NewService(hd.Name, sd.Description)
			svc.DisplayName = sd.DisplayName
			sd.Checkable.apply(&svc.Checkable)

			if err := store.AddService(svc); err != nil {
				return nil, err
			}
		}
	}

	if err := store.Resolve(); err != nil {
		return nil, err
	}

	for _, dd := range f.Dependencies {
		d := &objects.Dependency{
			Dependent:      dd.Dependent,
			Master:         dd.Master,
			Type:           dd.Type,
			InheritsParent: dd.InheritsParent,
			Period:         dd.Period,
		}

		if dd.FailOn != "" {
			mask, err := objects.ParseStateMask(dd.Master, dd.FailOn)
			if err != nil {
				return nil, errors.Wrapf(err, "fail_on of %s", d)
			}

			d.FailOn = mask
		}

		if err := store.AddDependency(d); err != nil {
			return nil, err
		}
	}

	return store, nil
}

func (cd Checkable) apply(c *objects.Checkable) {
	c.CheckInterval = cd.CheckInterval
	c.RetryInterval = cd.RetryInterval
	c.CheckTimeout = cd.CheckTimeout
	c.FreshnessThreshold = cd.FreshnessThreshold
	c.CheckPeriod = cd.CheckPeriod
	c.Flapping.LowThreshold = cd.LowFlapThreshold
	c.Flapping.HighThreshold = cd.HighFlapThreshold

	if cd.MaxAttempts > 0 {
		c.MaxAttempts = cd.MaxAttempts
	}
	if cd.ActiveChecks != nil {
		c.ChecksEnabled = *cd.ActiveChecks
	}
	if cd.FlapDetection != nil {
		c.FlapDetectionEnabled = *cd.FlapDetection
	}
}
