package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blackwell-systems/macsnap/internal/brew"
	"github.com/blackwell-systems/macsnap/internal/ledger"
)

func waitFor(t *testing.T, ch <-chan *ledger.Ledger, match func(*ledger.Ledger) bool) *ledger.Ledger {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case l := <-ch:
			if match(l) {
				return l
			}
		case <-deadline:
			t.Fatal("timed out waiting for ledger change")
			return nil
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", func(*ledger.Ledger) {}); err == nil {
		t.Error("New(\"\") expected error, got nil")
	}
	if _, err := New("progress.json", nil); err == nil {
		t.Error("New(nil handler) expected error, got nil")
	}

	w, err := New("progress.json", func(*ledger.Ledger) {})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !filepath.IsAbs(w.Path()) {
		t.Errorf("Path() = %q, want absolute", w.Path())
	}
}

func TestWatcher_FollowsAtomicSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")

	changes := make(chan *ledger.Ledger, 16)
	w, err := New(path, func(l *ledger.Ledger) { changes <- l })
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.Debounce = 20 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	l := ledger.New()
	l.MarkCompleted(brew.KindFormula, "git")
	if err := ledger.Save(path, l); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	waitFor(t, changes, func(got *ledger.Ledger) bool {
		return got.IsCompleted(brew.KindFormula, "git")
	})

	l.MarkFailed(brew.KindFormula, "llvm", brew.ReasonTimeout, "")
	if err := ledger.Save(path, l); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got := waitFor(t, changes, func(got *ledger.Ledger) bool {
		return got.IsFailed(brew.KindFormula, "llvm")
	})
	if !got.IsCompleted(brew.KindFormula, "git") {
		t.Error("later change lost earlier completion")
	}
}

func TestWatcher_ReadsExistingLedgerOnStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	l := ledger.New()
	l.MarkCompleted(brew.KindTap, "hashicorp/tap")
	if err := ledger.Save(path, l); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	changes := make(chan *ledger.Ledger, 4)
	w, err := New(path, func(l *ledger.Ledger) { changes <- l })
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	select {
	case got := <-changes:
		if !got.IsCompleted(brew.KindTap, "hashicorp/tap") {
			t.Error("initial read missing completed tap")
		}
	default:
		t.Fatal("handler not called for existing ledger")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")

	changes := make(chan *ledger.Ledger, 4)
	w, err := New(path, func(l *ledger.Ledger) { changes <- l })
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.Debounce = 10 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "install.log"), []byte("line\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changes:
		t.Error("handler called for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StartMissingDir(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing", "progress.json"), func(*ledger.Ledger) {})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Start(); err == nil {
		w.Stop()
		t.Error("Start() expected error for missing directory")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "progress.json"), func(*ledger.Ledger) {})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
