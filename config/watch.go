package config

import (
	"log"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads allowedDirs and aiCommands from the config file on
// disk without requiring a restart. Port and auth.tokenHash are
// deliberately not swapped live — see SPEC_FULL.md §5.9.
type Watcher struct {
	current *atomic.Pointer[Config]
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching cfg's backing file for writes.
func NewWatcher(cfg *Config) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(cfg.Path()); err != nil {
		fw.Close()
		return nil, err
	}

	ptr := &atomic.Pointer[Config]{}
	ptr.Store(cfg)

	w := &Watcher{
		current: ptr,
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Current returns the most recently loaded Config snapshot.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[config] watch error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	old := w.current.Load()
	fresh, err := readFile(old.Path())
	if err != nil {
		log.Printf("[config] reload failed, keeping previous snapshot: %v", err)
		return
	}
	fresh.path = old.Path()
	fresh.applyDefaults()

	// Port and token hash are carried forward from the live snapshot —
	// only allowedDirs/aiCommands hot-swap.
	fresh.Port = old.Port
	fresh.Auth = old.Auth

	w.current.Store(fresh)
	log.Printf("[config] reloaded allowedDirs=%d aiCommands=%d", len(fresh.AllowedDirs), len(fresh.AICommands))
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
