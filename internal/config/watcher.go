package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the configuration file when it changes on disk. Only
// configurations that parse and validate are published.
type Watcher struct {
	path     string
	debounce time.Duration
	log      zerolog.Logger
	updates  chan *Config

	mu   sync.Mutex
	last []byte
}

// NewWatcher creates a watcher for path. The current file content is taken
// as the baseline, so an unchanged save publishes nothing.
func NewWatcher(path string, log zerolog.Logger) *Watcher {
	w := &Watcher{
		path:     path,
		debounce: 250 * time.Millisecond,
		log:      log.With().Str("component", "config").Logger(),
		updates:  make(chan *Config, 1),
	}
	w.last, _ = os.ReadFile(path)
	return w
}

// Updates delivers reloaded configurations. Only the newest pending
// configuration is kept.
func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

// Run watches the file until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	file := filepath.Base(w.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) reload() {
	b, err := os.ReadFile(w.path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config read failed")
		return
	}

	w.mu.Lock()
	unchanged := bytes.Equal(b, w.last)
	w.mu.Unlock()
	if unchanged {
		w.log.Debug().Msg("config unchanged; skipping")
		return
	}

	cfg, err := Parse(b)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config rejected")
		return
	}

	w.mu.Lock()
	w.last = b
	w.mu.Unlock()
	w.publish(cfg)
	w.log.Info().Str("path", w.path).Msg("config reloaded")
}

func (w *Watcher) publish(cfg *Config) {
	select {
	case w.updates <- cfg:
		return
	default:
	}
	// drop the stale pending config and deliver the newest
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- cfg:
	default:
	}
}
