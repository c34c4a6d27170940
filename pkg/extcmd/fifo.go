package extcmd

import (
	"bufio"
	"context"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"io"
	"os"
)

// Reader feeds lines written to a named pipe into a Buffer.
type Reader struct {
	path   string
	buffer *Buffer
	logger *logging.Logger
}

// NewReader returns a Reader for the FIFO at path.
func NewReader(path string, buffer *Buffer, logger *logging.Logger) *Reader {
	return &Reader{path: path, buffer: buffer, logger: logger}
}

// Run creates the FIFO if necessary and reads commands from it until ctx is canceled.
func (r *Reader) Run(ctx context.Context) error {
	if err := ensureFIFO(r.path); err != nil {
		return err
	}

	// Opening for writing as well keeps reads blocking instead of returning EOF
	// each time the last external writer closes the pipe.
	f, err := os.OpenFile(r.path, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrapf(err, "can't open command file %q", r.path)
	}

	go func() {
		<-ctx.Done()
		_ = f.Close()
	}()

	r.logger.Infow("Accepting external commands", zap.String("path", r.path))

	err = r.Consume(f)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return err
}

// Consume reads commands line by line from rd until EOF.
// Malformed lines and commands not fitting into the buffer are logged and dropped.
func (r *Reader) Consume(rd io.Reader) error {
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		c, err := Parse(line)
		if err != nil {
			r.logger.Warnw("Ignoring invalid external command", zap.String("line", line), zap.Error(err))
			continue
		}

		if err := r.buffer.Push(c); err != nil {
			r.logger.Errorw("Dropping external command", zap.Stringer("command", c), zap.Error(err))
		}
	}

	return errors.Wrap(scanner.Err(), "can't read external commands")
}

// ensureFIFO creates a named pipe at path unless one exists already.
func ensureFIFO(path string) error {
	fi, err := os.Stat(path)
	switch {
	case err == nil:
		if fi.Mode()&os.ModeNamedPipe == 0 {
			return errors.Errorf("command file %q exists but is not a named pipe", path)
		}

		return nil
	case errors.Is(err, os.ErrNotExist):
		return errors.Wrapf(unix.Mkfifo(path, 0o660), "can't create command file %q", path)
	default:
		return errors.Wrapf(err, "can't stat command file %q", path)
	}
}
