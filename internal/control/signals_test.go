package control

import (
	"os"
	"path/filepath"
	"testing"
)

func TestShouldStopViaSignalFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if w.ShouldStop("ws-1") {
		t.Error("stop reported before any signal")
	}

	if err := w.RequestStop("ws-1"); err != nil {
		t.Fatalf("RequestStop() error = %v", err)
	}

	if !w.ShouldStop("ws-1") {
		t.Error("stop not reported after signal file written")
	}
	if w.ShouldStop("ws-2") {
		t.Error("unrelated workspace reported stopped")
	}
}

func TestStopAllAffectsEveryWorkspace(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if err := w.RequestStopAll(); err != nil {
		t.Fatalf("RequestStopAll() error = %v", err)
	}

	if !w.ShouldStopAll() {
		t.Error("run-wide stop not reported")
	}
	if !w.ShouldStop("ws-1") || !w.ShouldStop("ws-2") {
		t.Error("run-wide stop not applied to individual workspaces")
	}
}

func TestClearResetsSignals(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if err := w.RequestStop("ws-1"); err != nil {
		t.Fatalf("RequestStop() error = %v", err)
	}
	if err := w.RequestStopAll(); err != nil {
		t.Fatalf("RequestStopAll() error = %v", err)
	}
	if err := w.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if w.ShouldStopAll() {
		t.Error("run-wide stop still reported after Clear")
	}
	if w.ShouldStop("ws-1") {
		t.Error("workspace stop still reported after Clear")
	}
}

func TestExternallyDroppedFileIsDetected(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	// Simulate another process dropping the file, bypassing RequestStop.
	path := filepath.Join(dir, ".branchpilot", "signals", "stop-ws-9")
	if err := os.WriteFile(path, []byte("now"), 0644); err != nil {
		t.Fatalf("write signal file: %v", err)
	}

	// ShouldStop stats the file directly, so detection does not depend on
	// the fsnotify event having been delivered yet.
	if !w.ShouldStop("ws-9") {
		t.Error("externally dropped signal file not detected")
	}
}

func TestSignalsDirectoryCreated(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	info, err := os.Stat(filepath.Join(dir, ".branchpilot", "signals"))
	if err != nil {
		t.Fatalf("signals directory missing: %v", err)
	}
	if !info.IsDir() {
		t.Error("signals path is not a directory")
	}
}
