// Package control handles out-of-band stop requests via signal files in
// the .branchpilot directory. An operator (or another process) drops a
// signal file; the watcher picks it up and the dispatcher cancels the
// matching workspace without touching its siblings.
package control

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	signalsDirName = "signals"
	stopAllFile    = "stop-all"
	stopPrefix     = "stop-"
)

// Watcher monitors the signals directory for stop requests.
// stop-all halts the whole run; stop-<workspace-id> halts one workspace.
type Watcher struct {
	baseDir string

	mu      sync.RWMutex
	stopAll bool
	stopped map[string]bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher rooted at repoPath/.branchpilot/signals.
// If the fsnotify watcher cannot be started the Watcher still works via
// stat-based polling in ShouldStop.
func NewWatcher(repoPath string) (*Watcher, error) {
	baseDir := filepath.Join(repoPath, ".branchpilot")
	signalsDir := filepath.Join(baseDir, signalsDirName)
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		baseDir: baseDir,
		stopped: make(map[string]bool),
		done:    make(chan struct{}),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return w, nil
	}
	if err := fsw.Add(signalsDir); err != nil {
		fsw.Close()
		return w, nil
	}
	w.watcher = fsw

	go w.watchSignals()
	return w, nil
}

// watchSignals records stop files as they appear.
func (w *Watcher) watchSignals() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.record(filepath.Base(event.Name))
		case <-w.watcher.Errors:
			// Keep watching; ShouldStop stats the files directly anyway.
		}
	}
}

func (w *Watcher) record(name string) {
	if !strings.HasPrefix(name, stopPrefix) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if name == stopAllFile {
		w.stopAll = true
		return
	}
	w.stopped[strings.TrimPrefix(name, stopPrefix)] = true
}

// ShouldStopAll reports whether a run-wide stop has been requested.
func (w *Watcher) ShouldStopAll() bool {
	// Stat directly in case the watcher missed the event.
	if _, err := os.Stat(w.signalPath(stopAllFile)); err == nil {
		w.mu.Lock()
		w.stopAll = true
		w.mu.Unlock()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopAll
}

// ShouldStop reports whether the given workspace has been asked to stop,
// either individually or via a run-wide stop.
func (w *Watcher) ShouldStop(workspaceID string) bool {
	if w.ShouldStopAll() {
		return true
	}

	if _, err := os.Stat(w.signalPath(stopPrefix + workspaceID)); err == nil {
		w.mu.Lock()
		w.stopped[workspaceID] = true
		w.mu.Unlock()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopped[workspaceID]
}

// RequestStop drops a stop signal file for one workspace.
func (w *Watcher) RequestStop(workspaceID string) error {
	return os.WriteFile(w.signalPath(stopPrefix+workspaceID), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// RequestStopAll drops the run-wide stop signal file.
func (w *Watcher) RequestStopAll() error {
	return os.WriteFile(w.signalPath(stopAllFile), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes all signal files and resets recorded state.
func (w *Watcher) Clear() error {
	w.mu.Lock()
	w.stopAll = false
	w.stopped = make(map[string]bool)
	w.mu.Unlock()

	signalsDir := filepath.Join(w.baseDir, signalsDirName)
	entries, err := os.ReadDir(signalsDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), stopPrefix) {
			os.Remove(filepath.Join(signalsDir, entry.Name()))
		}
	}
	return nil
}

// BaseDir returns the .branchpilot directory path.
func (w *Watcher) BaseDir() string {
	return w.baseDir
}

func (w *Watcher) signalPath(name string) string {
	return filepath.Join(w.baseDir, signalsDirName, name)
}

// Close shuts down the watcher.
func (w *Watcher) Close() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
}
