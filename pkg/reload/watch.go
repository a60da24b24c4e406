package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rhuss/apiaccounts/pkg/debug"
)

// PathsFunc lists the files whose changes should trigger a reload. It is
// called when watching starts and again after every successful reload.
type PathsFunc func() ([]string, error)

// Watch reloads when any of paths changes, until ctx is done.
func (r *Reloader) Watch(ctx context.Context, paths ...string) error {
	return r.WatchFunc(ctx, func() ([]string, error) { return paths, nil })
}

// WatchFunc reloads when any file listed by paths changes, until ctx is
// done. Parent directories are watched so that editors and secret mounts
// replacing a file by rename are noticed. Bursts of events within the
// debounce interval trigger a single reload. After each successful reload,
// however triggered, the file set is recomputed; directories that cannot be
// watched at that point are logged and skipped.
func (r *Reloader) WatchFunc(ctx context.Context, paths PathsFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()

	list, err := paths()
	if err != nil {
		return fmt.Errorf("listing watched files: %w", err)
	}
	ws := &watchSet{w: w, dirs: make(map[string]bool)}
	if err := ws.update(list); err != nil {
		return err
	}
	debug.Log("reload", "watching files", "files", len(ws.targets), "dirs", len(ws.dirs))

	d := &debouncer{interval: r.debounce, fire: func() { _ = r.Reload(ctx) }}
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.installed:
			list, err := paths()
			if err != nil {
				slog.Warn("keeping previous watch list", "error", err)
				continue
			}
			if err := ws.update(list); err != nil {
				slog.Warn("watch list partially applied", "error", err)
			}
			debug.Log("reload", "watch list refreshed", "files", len(ws.targets), "dirs", len(ws.dirs))
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, ws.targets) {
				continue
			}
			debug.Trace("reload", "file event", "name", ev.Name, "op", ev.Op.String())
			d.trigger()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Debug("fsnotify error", "error", err)
		}
	}
}

// watchSet tracks the target files and the directories registered with the
// watcher. It is only used from the WatchFunc goroutine.
type watchSet struct {
	w       *fsnotify.Watcher
	targets map[string]bool
	dirs    map[string]bool
}

// update replaces the target set, adding directories that became relevant
// and removing those that no longer are. The first failing directory is
// returned; all others are still applied.
func (s *watchSet) update(paths []string) error {
	targets := make(map[string]bool, len(paths))
	want := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		targets[abs] = true
		want[filepath.Dir(abs)] = true
	}

	var firstErr error
	for dir := range want {
		if s.dirs[dir] {
			continue
		}
		if err := s.w.Add(dir); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("watching %s: %w", dir, err)
			}
			continue
		}
		s.dirs[dir] = true
	}
	for dir := range s.dirs {
		if !want[dir] {
			_ = s.w.Remove(dir)
			delete(s.dirs, dir)
		}
	}
	s.targets = targets
	return firstErr
}

// relevant reports whether ev concerns a watched file. Kubernetes secret
// volumes swap a "..data" symlink instead of touching the files themselves.
func relevant(ev fsnotify.Event, targets map[string]bool) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(ev.Name)
	if targets[name] {
		return true
	}
	return strings.HasPrefix(filepath.Base(name), "..data")
}

type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	interval time.Duration
	fire     func()
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.interval <= 0 {
		go d.fire()
		return
	}
	if d.timer == nil {
		d.timer = time.AfterFunc(d.interval, d.fire)
		return
	}
	d.timer.Reset(d.interval)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
