package config

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pagewatch/internal/monitor"
	"pagewatch/pkg/logx"
)

// TargetsWatcher hot-reloads the targets file. Edits are debounced (to sit
// out partial writes), re-validated, and deduplicated by content hash; an
// invalid edit is logged and rejected so the previous list stays active.
type TargetsWatcher struct {
	path string
	log  logx.Logger

	updates chan []monitor.Target

	mu       sync.Mutex
	lastHash uint64
}

func NewTargetsWatcher(path string, log logx.Logger) *TargetsWatcher {
	return &TargetsWatcher{
		path:    path,
		log:     log,
		updates: make(chan []monitor.Target, 1),
	}
}

// Updates delivers validated target lists. Only the latest pending list is
// kept; the consumer swaps it in between poll ticks.
func (w *TargetsWatcher) Updates() <-chan []monitor.Target { return w.updates }

// Seed records the hash of the initially loaded document so an event for
// unchanged content does not republish.
func (w *TargetsWatcher) Seed(data []byte) {
	w.mu.Lock()
	w.lastHash = hashBytes(data)
	w.mu.Unlock()
}

// Watch runs until ctx is canceled. The fsnotify watcher is recreated with
// backoff when it gets into a bad state (some editors replace the file in
// ways that kill the watch).
func (w *TargetsWatcher) Watch(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)

	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() { w.reload() })
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		fw, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn("targets watch init failed", logx.Err(err), logx.String("dir", dir))
			if !sleepOrDone(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, restartBackoffMax)
			continue
		}
		if err := fw.Add(dir); err != nil {
			w.log.Warn("targets watch add failed", logx.Err(err), logx.String("dir", dir))
			_ = fw.Close()
			if !sleepOrDone(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, restartBackoffMax)
			continue
		}
		backoff = restartBackoffBase

		if !w.watchLoop(ctx, fw, file, debounce) {
			_ = fw.Close()
			return nil
		}
		_ = fw.Close()
		// Fall through to recreate the watcher.
	}
}

// watchLoop returns false when ctx is done, true when the watcher broke
// and should be recreated.
func (w *TargetsWatcher) watchLoop(ctx context.Context, fw *fsnotify.Watcher, file string, debounce func()) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-fw.Events:
			if !ok {
				w.log.Warn("targets watch event channel closed; restarting watcher")
				return true
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug("targets change detected; scheduling reload", logx.String("path", w.path))
			debounce()
		case err, ok := <-fw.Errors:
			if !ok {
				w.log.Warn("targets watch error channel closed; restarting watcher")
				return true
			}
			w.log.Warn("targets watch error", logx.Err(err))
		}
	}
}

func (w *TargetsWatcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.log.Warn("targets reload read failed", logx.String("path", w.path), logx.Err(err))
		return
	}

	h := hashBytes(data)
	w.mu.Lock()
	unchanged := h != 0 && h == w.lastHash
	w.mu.Unlock()
	if unchanged {
		w.log.Debug("targets unchanged; skipping reload", logx.String("path", w.path))
		return
	}

	targets, err := ParseTargets(w.path, data)
	if err != nil {
		w.log.Warn("targets reload rejected", logx.String("path", w.path), logx.Err(err))
		return
	}

	w.mu.Lock()
	w.lastHash = h
	w.mu.Unlock()

	// Keep only the latest pending list.
	select {
	case w.updates <- targets:
	default:
		select {
		case <-w.updates:
		default:
		}
		select {
		case w.updates <- targets:
		default:
		}
	}
	w.log.Info("targets reloaded", logx.Int("count", len(targets)))
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
