// Package extcmd accepts external commands like SCHEDULE_HOST_DOWNTIME
// in the "[timestamp] NAME;arg;..." line format.
package extcmd

import (
	"github.com/pkg/errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnknownCommand is returned for commands not supported.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrBufferFull is returned if the command buffer has no free slot.
	ErrBufferFull = errors.New("command buffer full")
)

// Command is a parsed external command.
type Command struct {
	Time time.Time
	Name string
	Args []string
}

// arity maps the supported commands to their minimum and maximum number of arguments.
var arity = map[string][2]int{
	"SCHEDULE_HOST_DOWNTIME":       {8, 8},
	"SCHEDULE_SVC_DOWNTIME":        {9, 9},
	"SCHEDULE_HOST_SVC_DOWNTIME":   {8, 8},
	"DEL_HOST_DOWNTIME":            {1, 1},
	"DEL_SVC_DOWNTIME":             {1, 1},
	"DEL_DOWNTIME_BY_HOST_NAME":    {1, 4},
	"ENABLE_FLAP_DETECTION":        {0, 0},
	"DISABLE_FLAP_DETECTION":       {0, 0},
	"ENABLE_HOST_FLAP_DETECTION":   {1, 1},
	"DISABLE_HOST_FLAP_DETECTION":  {1, 1},
	"ENABLE_SVC_FLAP_DETECTION":    {2, 2},
	"DISABLE_SVC_FLAP_DETECTION":   {2, 2},
	"PROCESS_HOST_CHECK_RESULT":    {3, 3},
	"PROCESS_SERVICE_CHECK_RESULT": {4, 4},
}

// Parse parses a "[timestamp] NAME;arg;..." line.
// The last argument may contain semicolons if the command takes a free text argument last.
func Parse(line string) (*Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return nil, errors.Errorf("command %q lacks a timestamp", line)
	}

	ts, rest, ok := strings.Cut(line[1:], "]")
	if !ok {
		return nil, errors.Errorf("command %q has an unterminated timestamp", line)
	}

	seconds, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timestamp in command %q", line)
	}

	rest = strings.TrimSpace(rest)
	name, args, _ := strings.Cut(rest, ";")

	bounds, ok := arity[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownCommand, name)
	}

	c := &Command{Time: time.Unix(seconds, 0), Name: name}
	if bounds[1] > 0 && args != "" {
		c.Args = strings.SplitN(args, ";", bounds[1])
	}

	if len(c.Args) < bounds[0] {
		return nil, errors.Errorf("%s expects at least %d arguments, got %d", name, bounds[0], len(c.Args))
	}

	return c, nil
}

// String implements the fmt.Stringer interface.
func (c *Command) String() string {
	return "[" + strconv.FormatInt(c.Time.Unix(), 10) + "] " + strings.Join(append([]string{c.Name}, c.Args...), ";")
}
