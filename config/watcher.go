package config

import (
	"context"
	"path/filepath"
	"sync"

	"clob/infra/logging"

	"github.com/fsnotify/fsnotify"
)

const namedLogger = "cfgwatcher"

// Watcher reloads the configuration file when it changes and hands the
// new configuration to the registered listeners.
type Watcher struct {
	log  *logging.Logger
	root string
	path string

	opts []func(*Config) error

	mu                 sync.Mutex
	cfg                Config
	cfgUpdateListeners []func(Config)
}

// WatcherOption customises a Watcher.
type WatcherOption func(*Watcher)

// Use applies fn to every configuration the watcher loads, after the
// file is decoded. Re-parsing command-line flags here keeps them ahead of
// the file.
func Use(fn func(*Config) error) WatcherOption {
	return func(w *Watcher) {
		w.opts = append(w.opts, fn)
	}
}

// NewWatcher loads the configuration under root and watches it until ctx
// is done.
func NewWatcher(ctx context.Context, log *logging.Logger, root string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		log:  log.Named(namedLogger),
		root: root,
		path: Path(root),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.load(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// the directory survives editors that replace the file
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	w.log.Info("config watcher started", logging.String("config", w.path))

	go w.watch(ctx, watcher)
	return w, nil
}

// Get returns the last configuration loaded.
func (w *Watcher) Get() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// OnConfigUpdate registers functions called with every reloaded
// configuration.
func (w *Watcher) OnConfigUpdate(fns ...func(Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfgUpdateListeners = append(w.cfgUpdateListeners, fns...)
}

func (w *Watcher) load() error {
	cfg := NewDefaultConfig(w.root)
	if err := decodeFile(w.path, &cfg); err != nil {
		return err
	}
	for _, fn := range w.opts {
		if err := fn(&cfg); err != nil {
			return err
		}
	}
	w.mu.Lock()
	w.cfg = cfg
	w.mu.Unlock()
	return nil
}

func (w *Watcher) notify() {
	w.mu.Lock()
	cfg := w.cfg
	listeners := append([]func(Config){}, w.cfgUpdateListeners...)
	w.mu.Unlock()
	for _, f := range listeners {
		f(cfg)
	}
}

func (w *Watcher) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := w.load(); err != nil {
				w.log.Error("unable to load configuration", logging.Error(err))
				continue
			}
			w.log.Info("configuration updated", logging.String("event", event.Name))
			w.notify()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("config watcher received error event", logging.Error(err))
		case <-ctx.Done():
			return
		}
	}
}
