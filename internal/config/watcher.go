package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher monitors the profiles file for changes so watch mode picks up
// edited or newly added profiles without a restart.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	stopOnce sync.Once
	onReload func(*Config)
}

// NewWatcher creates a watcher for the given config file path. onReload is
// called with the freshly loaded config after each detected change.
func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     path,
		watcher:  fsWatcher,
		stopChan: make(chan struct{}),
		onReload: onReload,
	}, nil
}

// Start begins watching the config file's directory. Watching the directory
// rather than the file survives atomic rename-into-place writes.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.watchForChanges()
	log.Debug().Str("path", w.path).Msg("Started watching profiles file for changes")
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if err := w.watcher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close config watcher")
		}
	})
}

func (w *Watcher) watchForChanges() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce: give the writer a moment to finish.
			time.Sleep(100 * time.Millisecond)
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Config watcher error")

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("Failed to reload profiles after change")
		return
	}
	log.Info().Int("profiles", len(cfg.Profiles)).Msg("Reloaded profiles file")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
