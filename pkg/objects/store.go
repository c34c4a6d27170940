package objects

import (
	"github.com/icinga/icingacore/pkg/types"
	"github.com/pkg/errors"
)

var (
	// ErrUnknownTimeperiod is returned when an object references an undefined timeperiod.
	ErrUnknownTimeperiod = errors.New("unknown timeperiod")

	// ErrUnknownObject is returned when a host or service is not in the Store.
	ErrUnknownObject = errors.New("unknown object")

	// ErrDuplicateObject is returned when an object is added twice.
	ErrDuplicateObject = errors.New("duplicate object")
)

// Store is the in-memory arena of all monitored objects.
// Objects are owned by the Store and addressed by Key.
// It is not safe for concurrent use.
type Store struct {
	timeperiods map[string]*Timeperiod

	hosts     []*Host
	hostIndex map[string]*Host

	services     []*Service
	serviceIndex map[Key]*Service
	hostServices map[string][]*Service

	dependencies []*Dependency
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		timeperiods:  map[string]*Timeperiod{},
		hostIndex:    map[string]*Host{},
		serviceIndex: map[Key]*Service{},
		hostServices: map[string][]*Service{},
	}
}

// AddTimeperiod adds tp. Exclusions are resolved by Resolve.
func (s *Store) AddTimeperiod(tp *Timeperiod) error {
	if _, ok := s.timeperiods[tp.Name]; ok {
		return errors.Wrapf(ErrDuplicateObject, "timeperiod %q", tp.Name)
	}

	s.timeperiods[tp.Name] = tp

	return nil
}

// AddHost adds h. Its check period must already be known.
func (s *Store) AddHost(h *Host) error {
	if _, ok := s.hostIndex[h.Name]; ok {
		return errors.Wrapf(ErrDuplicateObject, "host %q", h.Name)
	}

	if err := s.checkPeriodKnown(&h.Checkable); err != nil {
		return err
	}

	s.hosts = append(s.hosts, h)
	s.hostIndex[h.Name] = h

	return nil
}

// AddService adds svc. Its host and check period must already be known.
func (s *Store) AddService(svc *Service) error {
	if _, ok := s.hostIndex[svc.HostName]; !ok {
		return errors.Wrapf(ErrUnknownObject, "host %q of service %q", svc.HostName, svc.Description)
	}

	if _, ok := s.serviceIndex[svc.Key]; ok {
		return errors.Wrapf(ErrDuplicateObject, "service %q", svc.Key)
	}

	if err := s.checkPeriodKnown(&svc.Checkable); err != nil {
		return err
	}

	s.services = append(s.services, svc)
	s.serviceIndex[svc.Key] = svc
	s.hostServices[svc.HostName] = append(s.hostServices[svc.HostName], svc)

	return nil
}

// AddDependency adds d. Both of its ends and its period must already be known.
func (s *Store) AddDependency(d *Dependency) error {
	for _, k := range []Key{d.Dependent, d.Master} {
		if s.Checkable(k) == nil {
			return errors.Wrapf(ErrUnknownObject, "%s %q of %s", k.Kind(), k, d)
		}
	}

	if d.Period != "" {
		if _, ok := s.timeperiods[d.Period]; !ok {
			return errors.Wrapf(ErrUnknownTimeperiod, "%q of %s", d.Period, d)
		}
	}

	if d.Type != types.DependencyExecution && d.Type != types.DependencyNotification {
		return errors.Errorf("%s has no valid type", d)
	}

	s.dependencies = append(s.dependencies, d)

	return nil
}

// Resolve links timeperiod exclusions. Call it once all timeperiods are added.
func (s *Store) Resolve() error {
	for _, tp := range s.timeperiods {
		if err := tp.resolve(s.Timeperiod); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) checkPeriodKnown(c *Checkable) error {
	if c.CheckPeriod == "" {
		return nil
	}

	if _, ok := s.timeperiods[c.CheckPeriod]; !ok {
		return errors.Wrapf(ErrUnknownTimeperiod, "check period %q of %s %q", c.CheckPeriod, c.Key.Kind(), c.Key)
	}

	return nil
}

// Host returns the named host or nil.
func (s *Store) Host(name string) *Host {
	return s.hostIndex[name]
}

// Service returns the service or nil.
func (s *Store) Service(host, description string) *Service {
	return s.serviceIndex[ServiceKey(host, description)]
}

// Checkable returns the host or service k refers to, or nil.
func (s *Store) Checkable(k Key) *Checkable {
	if k.IsService() {
		if svc := s.serviceIndex[k]; svc != nil {
			return &svc.Checkable
		}

		return nil
	}

	if h := s.hostIndex[k.Host]; h != nil {
		return &h.Checkable
	}

	return nil
}

// Hosts returns all hosts in definition order.
func (s *Store) Hosts() []*Host {
	return s.hosts
}

// Services returns all services in definition order.
func (s *Store) Services() []*Service {
	return s.services
}

// ServicesOf returns the services of the named host in definition order.
func (s *Store) ServicesOf(host string) []*Service {
	return s.hostServices[host]
}

// Timeperiod returns the named timeperiod or nil.
func (s *Store) Timeperiod(name string) *Timeperiod {
	return s.timeperiods[name]
}

// CheckPeriod returns the check period of c. nil means 24x7.
func (s *Store) CheckPeriod(c *Checkable) *Timeperiod {
	if c.CheckPeriod == "" {
		return nil
	}

	return s.timeperiods[c.CheckPeriod]
}

// Dependencies returns all dependency edges of type t in definition order.
func (s *Store) Dependencies(t types.DependencyType) []*Dependency {
	var deps []*Dependency
	for _, d := range s.dependencies {
		if d.Type == t {
			deps = append(deps, d)
		}
	}

	return deps
}

// DependenciesOf returns the edges of type t whose dependent is k.
func (s *Store) DependenciesOf(k Key, t types.DependencyType) []*Dependency {
	var deps []*Dependency
	for _, d := range s.dependencies {
		if d.Type == t && d.Dependent == k {
			deps = append(deps, d)
		}
	}

	return deps
}

// Checkables calls fn for every service and then every host, in definition order.
func (s *Store) Checkables(fn func(*Checkable)) {
	for _, svc := range s.services {
		fn(&svc.Checkable)
	}

	for _, h := range s.hosts {
		fn(&h.Checkable)
	}
}
