// Package broker fans the engine's state change announcements out to sinks.
package broker

import (
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/pkg/errors"
	"sync/atomic"
)

// Result is what dispatching a Payload yields.
type Result uint8

const (
	OK Result = iota

	// Override suppresses the announced action. Only honored for CheckInitiate events.
	Override
)

// Dispatcher is the capability to announce state changes.
type Dispatcher interface {
	Dispatch(Payload) Result
}

// Sink consumes dispatched Payloads.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	Handle(Payload) (Result, error)
}

// Fanout dispatches to all of its sinks in order.
// A sink returning an error or panicking is logged and otherwise ignored.
type Fanout struct {
	sinks    []Sink
	logger   *logging.Logger
	failures atomic.Uint64
}

// NewFanout returns a new Fanout.
func NewFanout(logger *logging.Logger, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, logger: logger}
}

// Add appends a sink.
func (f *Fanout) Add(s Sink) {
	f.sinks = append(f.sinks, s)
}

// Dispatch implements the Dispatcher interface.
func (f *Fanout) Dispatch(p Payload) Result {
	result := OK

	for _, s := range f.sinks {
		r, err := f.handle(s, p)
		if err != nil {
			f.failures.Add(1)
			f.logger.Errorw("Can't dispatch event", "sink", s.Name(), "kind", p.Kind(), "error", err)

			continue
		}

		if r == Override {
			if c, ok := p.(*CheckEvent); ok && c.Phase == CheckInitiate {
				result = Override
			}
		}
	}

	return result
}

// Failures returns the number of failed sink invocations so far.
func (f *Fanout) Failures() uint64 {
	return f.failures.Load()
}

func (f *Fanout) handle(s Sink, p Payload) (r Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r = OK
			err = errors.Errorf("sink panicked: %v", rec)
		}
	}()

	return s.Handle(p)
}

// Nop is a Dispatcher that drops everything.
type Nop struct{}

// Dispatch implements the Dispatcher interface.
func (Nop) Dispatch(Payload) Result {
	return OK
}

// Assert interface compliance.
var (
	_ Dispatcher = (*Fanout)(nil)
	_ Dispatcher = Nop{}
)
