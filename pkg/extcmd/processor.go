package extcmd

import (
	"github.com/icinga/icingacore/pkg/downtime"
	"github.com/icinga/icingacore/pkg/flapping"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/pkg/errors"
	"strconv"
	"time"
)

// Env is what commands act upon.
type Env struct {
	Store     *objects.Store
	Downtimes *downtime.Manager
	Flapping  *flapping.Detector

	// Submit receives passive check results.
	Submit func(objects.CheckResult)
}

// Execute runs c against env.
func Execute(c *Command, env Env, now time.Time) error {
	switch c.Name {
	case "SCHEDULE_HOST_DOWNTIME":
		r, err := downtimeRequest(objects.HostKey(c.Args[0]), c.Args[1:])
		if err != nil {
			return err
		}

		_, err = env.Downtimes.Schedule(r, now)
		return err
	case "SCHEDULE_SVC_DOWNTIME":
		r, err := downtimeRequest(objects.ServiceKey(c.Args[0], c.Args[1]), c.Args[2:])
		if err != nil {
			return err
		}

		_, err = env.Downtimes.Schedule(r, now)
		return err
	case "SCHEDULE_HOST_SVC_DOWNTIME":
		if env.Store.Host(c.Args[0]) == nil {
			return errors.Wrapf(objects.ErrUnknownObject, "host %q", c.Args[0])
		}

		for _, svc := range env.Store.ServicesOf(c.Args[0]) {
			r, err := downtimeRequest(svc.Key, c.Args[1:])
			if err != nil {
				return err
			}

			if _, err := env.Downtimes.Schedule(r, now); err != nil {
				return errors.Wrapf(err, "can't schedule downtime for service %q", svc.Key)
			}
		}

		return nil
	case "DEL_HOST_DOWNTIME", "DEL_SVC_DOWNTIME":
		id, err := strconv.ParseUint(c.Args[0], 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid downtime id %q", c.Args[0])
		}

		// Each command only deletes downtimes of its own object kind.
		if d := env.Downtimes.Get(id); d != nil && d.Target.IsService() != (c.Name == "DEL_SVC_DOWNTIME") {
			return errors.Wrapf(downtime.ErrNotFound, "%d is a %s downtime", id, d.Target.Kind())
		}

		return env.Downtimes.Unschedule(id, now)
	case "DEL_DOWNTIME_BY_HOST_NAME":
		f := downtime.Filter{Host: c.Args[0]}
		if len(c.Args) > 1 {
			f.Service = c.Args[1]
		}

		if len(c.Args) > 2 && c.Args[2] != "" {
			ts, err := strconv.ParseInt(c.Args[2], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid start time %q", c.Args[2])
			}

			f.StartTime = time.Unix(ts, 0)
		}

		if len(c.Args) > 3 {
			f.Comment = c.Args[3]
		}

		env.Downtimes.UnscheduleMatching(f, now)

		return nil
	case "ENABLE_FLAP_DETECTION", "DISABLE_FLAP_DETECTION":
		env.Flapping.SetEnabled(c.Name == "ENABLE_FLAP_DETECTION", now)

		return nil
	case "ENABLE_HOST_FLAP_DETECTION", "DISABLE_HOST_FLAP_DETECTION":
		h := env.Store.Host(c.Args[0])
		if h == nil {
			return errors.Wrapf(objects.ErrUnknownObject, "host %q", c.Args[0])
		}

		env.Flapping.SetObjectEnabled(&h.Checkable, c.Name == "ENABLE_HOST_FLAP_DETECTION", now)

		return nil
	case "ENABLE_SVC_FLAP_DETECTION", "DISABLE_SVC_FLAP_DETECTION":
		svc := env.Store.Service(c.Args[0], c.Args[1])
		if svc == nil {
			return errors.Wrapf(objects.ErrUnknownObject, "service %q", objects.ServiceKey(c.Args[0], c.Args[1]))
		}

		env.Flapping.SetObjectEnabled(&svc.Checkable, c.Name == "ENABLE_SVC_FLAP_DETECTION", now)

		return nil
	case "PROCESS_HOST_CHECK_RESULT":
		return submit(env, objects.HostKey(c.Args[0]), c.Args[1], c.Args[2], c.Time, now)
	case "PROCESS_SERVICE_CHECK_RESULT":
		return submit(env, objects.ServiceKey(c.Args[0], c.Args[1]), c.Args[2], c.Args[3], c.Time, now)
	default:
		return errors.Wrap(ErrUnknownCommand, c.Name)
	}
}

// downtimeRequest parses start;end;fixed;trigger_id;duration;author;comment.
func downtimeRequest(target objects.Key, args []string) (downtime.Request, error) {
	var ints [5]int64
	for i, name := range []string{"start time", "end time", "fixed", "trigger id", "duration"} {
		v, err := strconv.ParseInt(args[i], 10, 64)
		if err != nil {
			return downtime.Request{}, errors.Wrapf(err, "invalid %s %q", name, args[i])
		}

		ints[i] = v
	}

	if ints[3] < 0 {
		return downtime.Request{}, errors.Errorf("invalid trigger id %d", ints[3])
	}

	return downtime.Request{
		Target:      target,
		StartTime:   time.Unix(ints[0], 0),
		EndTime:     time.Unix(ints[1], 0),
		Fixed:       ints[2] > 0,
		TriggeredBy: uint64(ints[3]),
		Duration:    time.Duration(ints[4]) * time.Second,
		Author:      args[5],
		Comment:     args[6],
	}, nil
}

func submit(env Env, k objects.Key, state, output string, checked, now time.Time) error {
	if env.Store.Checkable(k) == nil {
		return errors.Wrapf(objects.ErrUnknownObject, "%s %q", k.Kind(), k)
	}

	s, err := strconv.ParseUint(state, 10, 8)
	if err != nil || (k.IsService() && s > uint64(objects.ServiceUnknown)) || (!k.IsService() && s > uint64(objects.HostUnreachable)) {
		return errors.Errorf("invalid %s state %q", k.Kind(), state)
	}

	env.Submit(objects.CheckResult{
		Key:     k,
		State:   objects.State(s),
		Output:  output,
		Start:   checked,
		Finish:  checked,
		Latency: now.Sub(checked),
		Passive: true,
	})

	return nil
}
