// Package watch reports changes of stylesheets and mixin files with
// debouncing.
package watch

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is used when configured debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// Config holds watcher configuration options.
type Config struct {
	Debounce time.Duration
	Log      *zap.Logger
}

// Watcher monitors tracked files and directories and sends the list of
// changed paths once events stop coming for the debounce period.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	log      *zap.Logger

	mu    sync.Mutex
	files map[string]bool     // exact files
	globs map[string][]string // directory -> patterns of file names
	trees map[string]bool     // directories watched recursively

	onChange chan []string
	done     chan struct{}
}

// New creates a new watcher. Nothing is tracked until Add* methods are called.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		log:      log.Named("watch"),
		files:    make(map[string]bool),
		globs:    make(map[string][]string),
		trees:    make(map[string]bool),
		onChange: make(chan []string, 1),
		done:     make(chan struct{}),
	}, nil
}

// AddFile tracks a single file. Its directory is watched, so the file may be
// replaced or created later.
func (w *Watcher) AddFile(path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.fsw.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching directory %s: %w", filepath.Dir(path), err)
	}
	w.mu.Lock()
	w.files[path] = true
	w.mu.Unlock()
	return nil
}

// AddDir tracks files directly inside dir with names matching glob.
func (w *Watcher) AddDir(dir, glob string) error {
	if !doublestar.ValidatePattern(glob) {
		return fmt.Errorf("bad pattern %q for directory %s", glob, dir)
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}
	w.mu.Lock()
	if !slices.Contains(w.globs[dir], glob) {
		w.globs[dir] = append(w.globs[dir], glob)
	}
	w.mu.Unlock()
	return nil
}

// AddTree tracks every file under dir including directories created later.
func (w *Watcher) AddTree(dir string) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Debug("Skipping inaccessible path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.trees[dir] = true
	w.mu.Unlock()
	return nil
}

// Reset forgets everything tracked so far.
func (w *Watcher) Reset() {
	for _, path := range w.fsw.WatchList() {
		_ = w.fsw.Remove(path)
	}
	w.mu.Lock()
	clear(w.files)
	clear(w.globs)
	clear(w.trees)
	w.mu.Unlock()
}

// Start begins watching. Returns a channel that receives changed paths.
func (w *Watcher) Start() <-chan []string {
	go w.loop()
	return w.onChange
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsw.Close()
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending = make(map[string]bool)
	)

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}
			pending[event.Name] = true

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if len(pending) == 0 {
				continue
			}
			changed := slices.Sorted(maps.Keys(pending))
			// previous batch was not consumed yet, merge
			select {
			case prev := <-w.onChange:
				changed = slices.Compact(slices.Sorted(slices.Values(append(prev, changed...))))
			default:
			}
			w.onChange <- changed
			clear(pending)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("File system watcher error", zap.Error(err))

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent checks if the event should trigger reprocessing.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.files[event.Name] {
		return true
	}
	dir, base := filepath.Split(event.Name)
	dir = filepath.Clean(dir)
	for _, glob := range w.globs[dir] {
		if ok, _ := doublestar.Match(glob, base); ok {
			return true
		}
	}
	for root := range w.trees {
		rel, err := filepath.Rel(root, event.Name)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if event.Has(fsnotify.Create) {
			if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
				if err := w.fsw.Add(event.Name); err != nil {
					w.log.Debug("Unable to watch new directory", zap.String("dir", event.Name), zap.Error(err))
				}
			}
		}
		return true
	}
	return false
}
