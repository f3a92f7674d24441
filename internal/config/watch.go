package config

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// Store holds the active rules. Readers always see a complete rule set.
type Store struct {
	cur       atomic.Pointer[Rules]
	listeners []func(*Rules)
}

func NewStore(initial *Rules) *Store {
	if initial == nil {
		initial = Defaults()
	}
	s := &Store{}
	s.cur.Store(initial)
	return s
}

func (s *Store) Current() *Rules { return s.cur.Load() }

// OnChange registers a callback run synchronously after every Replace.
// Register before Watch starts.
func (s *Store) OnChange(fn func(*Rules)) {
	if fn != nil {
		s.listeners = append(s.listeners, fn)
	}
}

func (s *Store) Replace(r *Rules) {
	if r == nil {
		return
	}
	s.cur.Store(r)
	for _, fn := range s.listeners {
		fn(r)
	}
}

// reloadSettle coalesces the burst of events an editor or a ConfigMap swap
// produces for one save.
const reloadSettle = 150 * time.Millisecond

// Watch reloads the rules file at path until ctx is done. The parent
// directory is watched so saves that replace the file by rename, and
// Kubernetes ConfigMap symlink swaps, are seen. Unchanged content is not
// re-applied; a file that fails to parse is logged and the previous rules
// stay active.
func (s *Store) Watch(ctx context.Context, path string, log *logger.Logger) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	watchLog := log.With("component", "RulesWatcher", "path", target)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return err
	}
	watchLog.Info("Watching rules directory", "dir", dir)

	var (
		lastSum [sha256.Size]byte
		pending <-chan time.Time
	)
	if data, err := os.ReadFile(target); err == nil {
		lastSum = sha256.Sum256(data)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !touchesRules(event, target) {
				continue
			}
			pending = time.After(reloadSettle)

		case <-pending:
			pending = nil
			data, err := os.ReadFile(target)
			if err != nil {
				watchLog.Warn("Rules file unreadable, keeping previous rules", "error", err)
				continue
			}
			sum := sha256.Sum256(data)
			if sum == lastSum {
				continue
			}
			cfg, err := Parse(data)
			if err != nil {
				watchLog.Error("Rules reload failed, keeping previous rules", "error", err)
				continue
			}
			lastSum = sum
			s.Replace(cfg)
			watchLog.Info("Rules reloaded",
				"ties", cfg.Ties,
				"quality_threshold", cfg.QualityThreshold,
				"required_parameters", len(cfg.RequiredParameters),
			)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			watchLog.Error("Rules watcher error", "error", err)
		}
	}
}

// touchesRules reports whether a directory event can have changed the rules
// file. "..data" is the symlink Kubernetes flips when a ConfigMap updates.
func touchesRules(event fsnotify.Event, target string) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	if !filepath.IsAbs(name) {
		if abs, err := filepath.Abs(name); err == nil {
			name = abs
		}
	}
	return name == target || filepath.Base(name) == "..data"
}
