// Package watch re-runs a callback when a repository's work tree or git metadata changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period that must pass after the last event before the
// callback runs.
const DefaultDebounce = 250 * time.Millisecond

// ErrNoRoots indicates neither a work tree nor a git dir was given.
var ErrNoRoots = errors.New("watch: no paths to watch")

// gitTriggers are the git dir entries whose change can alter the version record.
var gitTriggers = map[string]struct{}{
	"HEAD":        {},
	"index":       {},
	"packed-refs": {},
}

// Option customises a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithIgnore drops events for the given files and for the temp files written beside them.
func WithIgnore(paths ...string) Option {
	return func(w *Watcher) {
		for _, p := range paths {
			if strings.TrimSpace(p) == "" {
				continue
			}
			if abs, err := filepath.Abs(p); err == nil {
				w.ignore = append(w.ignore, abs)
			}
		}
	}
}

// WithLogger sets the logger used for watcher diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher observes a work tree recursively and the version-relevant parts of a git dir.
type Watcher struct {
	worktree   string
	gitDir     string
	ignore     []string
	debounce   time.Duration
	logger     *zap.Logger
	newWatcher func() (*fsnotify.Watcher, error)
}

// New returns a Watcher for the given roots. Either root may be empty.
func New(worktree, gitDir string, opts ...Option) *Watcher {
	w := &Watcher{
		worktree:   cleanRoot(worktree),
		gitDir:     cleanRoot(gitDir),
		debounce:   DefaultDebounce,
		logger:     zap.NewNop(),
		newWatcher: fsnotify.NewWatcher,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is done, calling onChange once per burst of relevant events.
// Callback errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	if w.worktree == "" && w.gitDir == "" {
		return ErrNoRoots
	}

	watcher, err := w.newWatcher()
	if err != nil {
		return fmt.Errorf("watch: create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addRoots(watcher); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if w.isNewWorktreeDir(evt) {
				if err := w.addTree(watcher, evt.Name); err != nil {
					w.logger.Warn("watch: cannot follow new directory", zap.String("path", evt.Name), zap.Error(err))
				}
			}
			if !w.relevant(evt) {
				continue
			}
			w.logger.Debug("change detected", zap.String("path", evt.Name), zap.String("op", evt.Op.String()))
			timer.Reset(w.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch: watcher error", zap.Error(err))
		case <-timer.C:
			if err := onChange(ctx); err != nil {
				w.logger.Warn("watch: regeneration failed", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) addRoots(watcher *fsnotify.Watcher) error {
	if w.worktree != "" {
		if err := w.addTree(watcher, w.worktree); err != nil {
			return err
		}
	}
	if w.gitDir != "" {
		if err := watcher.Add(w.gitDir); err != nil {
			return fmt.Errorf("watch: watch git dir %s: %w", w.gitDir, err)
		}
		refs := filepath.Join(w.gitDir, "refs")
		if _, err := os.Stat(refs); err == nil {
			if err := w.addTree(watcher, refs); err != nil {
				return err
			}
		}
	}
	return nil
}

// addTree adds root and every directory below it, skipping git dirs.
func (w *Watcher) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watch: walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skipDir(path, d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch: watch directory %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) skipDir(path, name string) bool {
	if name == ".git" {
		return true
	}
	return w.gitDir != "" && samePath(path, w.gitDir)
}

func (w *Watcher) isNewWorktreeDir(evt fsnotify.Event) bool {
	if !evt.Has(fsnotify.Create) {
		return false
	}
	if !within(evt.Name, w.worktree) && !within(evt.Name, filepath.Join(w.gitDir, "refs")) {
		return false
	}
	info, err := os.Stat(evt.Name)
	return err == nil && info.IsDir() && !w.skipDir(evt.Name, filepath.Base(evt.Name))
}

// relevant reports whether evt can change the version record.
func (w *Watcher) relevant(evt fsnotify.Event) bool {
	if evt.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(evt.Name)
	if w.ignored(name) {
		return false
	}

	if w.gitDir != "" && within(name, w.gitDir) {
		rel, err := filepath.Rel(w.gitDir, name)
		if err != nil {
			return false
		}
		rel = filepath.ToSlash(rel)
		if _, ok := gitTriggers[rel]; ok {
			return true
		}
		return strings.HasPrefix(rel, "refs/") && !strings.HasSuffix(rel, ".lock")
	}

	if w.worktree == "" || !within(name, w.worktree) {
		return false
	}
	rel, err := filepath.Rel(w.worktree, name)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == ".git" {
			return false
		}
	}
	return true
}

func (w *Watcher) ignored(name string) bool {
	for _, p := range w.ignore {
		if name == p {
			return true
		}
		if filepath.Dir(name) == filepath.Dir(p) && strings.HasPrefix(filepath.Base(name), "."+filepath.Base(p)+".") {
			return true
		}
	}
	return false
}

func cleanRoot(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func within(path, root string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
