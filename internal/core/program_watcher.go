package core

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"multipoly/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// ProgramWatcher watches a program directory and loads each new program file
// into the kernel once its writes have settled.
type ProgramWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	kernel      *Kernel
	dir         string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats ProgramWatcherStats
}

// ProgramWatcherStats tracks watcher activity.
type ProgramWatcherStats struct {
	FilesCreated   int
	FilesModified  int
	ProgramsLoaded int
	TriplesLoaded  int
	Ignored        int
	Errors         int
	LastEventTime  time.Time
	LastEventPath  string
	LastEventType  string
}

// NewProgramWatcher creates a watcher for dir feeding kernel.
func NewProgramWatcher(dir string, kernel *Kernel) (*ProgramWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &ProgramWatcher{
		watcher:     watcher,
		kernel:      kernel,
		dir:         dir,
		debounceMap: make(map[string]time.Time),
		debounceDur: 300 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking; events are handled on a
// goroutine until Stop is called or ctx is cancelled.
func (pw *ProgramWatcher) Start(ctx context.Context) error {
	pw.mu.Lock()
	if pw.running {
		pw.mu.Unlock()
		return nil
	}
	pw.running = true
	pw.mu.Unlock()

	if err := os.MkdirAll(pw.dir, 0755); err != nil {
		logging.Get(logging.CategoryWatcher).Warn("failed to create program dir %s: %v", pw.dir, err)
	}
	if err := pw.watcher.Add(pw.dir); err != nil {
		pw.mu.Lock()
		pw.running = false
		pw.mu.Unlock()
		return err
	}
	logging.Watcher("watching program dir: %s", pw.dir)

	go pw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit. Safe to call
// more than once.
func (pw *ProgramWatcher) Stop() {
	pw.mu.Lock()
	wasRunning := pw.running
	pw.running = false
	pw.mu.Unlock()

	if wasRunning {
		close(pw.stopCh)
		<-pw.doneCh
	}

	if err := pw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatcher).Error("error closing watcher: %v", err)
	}
	if wasRunning {
		logging.Watcher("stopped")
	}
}

func (pw *ProgramWatcher) run(ctx context.Context) {
	defer close(pw.doneCh)

	debounceTicker := time.NewTicker(50 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatcherDebug("context cancelled")
			return

		case <-pw.stopCh:
			return

		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			pw.handleEvent(event)

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatcher).Error("watch error: %v", err)
			pw.mu.Lock()
			pw.stats.Errors++
			pw.mu.Unlock()

		case <-debounceTicker.C:
			pw.processDebouncedEvents()
		}
	}
}

func (pw *ProgramWatcher) handleEvent(event fsnotify.Event) {
	if !pw.kernel.IsProgram(event.Name) {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	default:
		return
	}
	logging.WatcherDebug("%s event for %s", eventType, event.Name)

	pw.mu.Lock()
	defer pw.mu.Unlock()
	pw.stats.LastEventTime = time.Now()
	pw.stats.LastEventPath = event.Name
	pw.stats.LastEventType = eventType
	if eventType == "create" {
		pw.stats.FilesCreated++
	} else {
		pw.stats.FilesModified++
	}
	pw.debounceMap[event.Name] = time.Now()
}

func (pw *ProgramWatcher) processDebouncedEvents() {
	pw.mu.Lock()
	now := time.Now()
	var settled []string
	for path, eventTime := range pw.debounceMap {
		if now.Sub(eventTime) >= pw.debounceDur {
			settled = append(settled, path)
			delete(pw.debounceMap, path)
		}
	}
	pw.mu.Unlock()

	for _, path := range settled {
		pw.load(path)
	}
}

func (pw *ProgramWatcher) load(path string) {
	n, loaded, err := pw.kernel.LoadFile(path)

	pw.mu.Lock()
	defer pw.mu.Unlock()
	switch {
	case err != nil:
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Get(logging.CategoryWatcher).Error("failed to load %s: %v", path, err)
		}
		pw.stats.Errors++
	case !loaded:
		logging.Get(logging.CategoryWatcher).Warn("%s changed after it was loaded; edits are ignored", filepath.Base(path))
		pw.stats.Ignored++
	default:
		pw.stats.ProgramsLoaded++
		pw.stats.TriplesLoaded += n
	}
}

// GetStats returns the current watcher statistics.
func (pw *ProgramWatcher) GetStats() ProgramWatcherStats {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.stats
}

// IsWatching reports whether the watcher is running.
func (pw *ProgramWatcher) IsWatching() bool {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.running
}
