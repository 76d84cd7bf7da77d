package confloader

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a configuration file for changes. The server uses it
// to reload the log level without a restart.
type Watcher struct {
	watcher   *fsnotify.Watcher
	callbacks []func(string)
	mu        sync.RWMutex
	done      chan struct{}
	logger    *slog.Logger
}

// NewWatcher creates a configuration file watcher.
func NewWatcher(logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		watcher: w,
		done:    make(chan struct{}),
		logger:  logger,
	}, nil
}

// Watch adds a file to watch. The containing directory is watched rather
// than the file itself so editor-style renames are still caught.
func (w *Watcher) Watch(path string) error {
	dir := filepath.Dir(path)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.logger.Debug("watching directory for changes", "path", dir, "file", filepath.Base(path))
	return nil
}

// OnChange registers a callback invoked with the path of a changed file.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start blocks processing events until Stop is called.
func (w *Watcher) Start() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.logger.Debug("configuration file changed", "file", event.Name, "op", event.Op.String())
				w.notify(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("configuration watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) notify(path string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, cb := range w.callbacks {
		cb(path)
	}
}
