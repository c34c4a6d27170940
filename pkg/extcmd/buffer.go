package extcmd

import "sync"

// Buffer collects commands from producers until the main loop drains them.
type Buffer struct {
	mu       sync.Mutex
	commands []*Command
	slots    int
}

// NewBuffer returns a Buffer holding at most slots commands.
func NewBuffer(slots int) *Buffer {
	return &Buffer{slots: slots}
}

// Push appends c or returns ErrBufferFull.
func (b *Buffer) Push(c *Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.commands) >= b.slots {
		return ErrBufferFull
	}

	b.commands = append(b.commands, c)

	return nil
}

// Drain removes and returns all buffered commands in arrival order.
func (b *Buffer) Drain() []*Command {
	b.mu.Lock()
	defer b.mu.Unlock()

	commands := b.commands
	b.commands = nil

	return commands
}

// Len returns the number of buffered commands.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.commands)
}
