package objectsfile

import (
	"context"
	"github.com/fsnotify/fsnotify"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/icinga/icingacore/pkg/objects"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"path/filepath"
	"time"
)

// DefaultDebounce is how long Watcher waits for further changes before reloading.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the object file whenever it changes.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *logging.Logger
}

// NewWatcher returns a new Watcher for the object file at path.
func NewWatcher(path string, debounce time.Duration, logger *logging.Logger) *Watcher {
	return &Watcher{path: filepath.Clean(path), debounce: debounce, logger: logger}
}

// Run watches the object file until ctx is canceled and passes every store
// loaded successfully after a change to onReload.
// The parent directory is watched so that editors replacing the file are noticed.
func (w *Watcher) Run(ctx context.Context, onReload func(*objects.Store) error) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "can't create file watcher")
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return errors.Wrapf(err, "can't watch %q", filepath.Dir(w.path))
	}

	w.logger.Infow("Watching object file for changes", zap.String("path", w.path))

	debounce := time.NewTimer(w.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("file watcher closed")
			}

			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}

			debounce.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}

			w.logger.Warnw("File watcher error", zap.Error(err))
		case <-debounce.C:
			store, err := Load(w.path)
			if err != nil {
				w.logger.Errorw("Can't reload object file, keeping the current objects", zap.Error(err))
				continue
			}

			w.logger.Infow("Object file changed, reloading",
				zap.Int("hosts", len(store.Hosts())), zap.Int("services", len(store.Services())))

			if err := onReload(store); err != nil {
				return err
			}
		}
	}
}
