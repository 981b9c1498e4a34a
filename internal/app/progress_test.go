package app

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackwell-systems/macsnap/internal/brew"
	"github.com/blackwell-systems/macsnap/internal/ledger"
)

func runProgressCapture(t *testing.T) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	progressCmd.SetOut(&buf)
	defer progressCmd.SetOut(nil)
	err := runProgress(progressCmd, nil)
	return buf.String(), err
}

func TestRunProgress_NoFile(t *testing.T) {
	useTestConfig(t, "")

	out, err := runProgressCapture(t)
	if err != nil {
		t.Fatalf("runProgress: %v", err)
	}
	if !strings.Contains(out, "No install progress saved") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunProgress_RendersLedger(t *testing.T) {
	dir := useTestConfig(t, "")

	l := ledger.New()
	l.MarkCompleted(brew.KindFormula, "git")
	l.MarkFailed(brew.KindCask, "zoom", brew.ReasonTimeout, "")
	l.RecordRename("exa", "eza")
	if err := ledger.Save(filepath.Join(dir, "progress.json"), l); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := runProgressCapture(t)
	if err != nil {
		t.Fatalf("runProgress: %v", err)
	}
	for _, want := range []string{"Progress file:", "formulae", "zoom", "exa → eza"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRunProgress_FileFlag(t *testing.T) {
	useTestConfig(t, "")
	other := filepath.Join(t.TempDir(), "elsewhere.json")

	l := ledger.New()
	l.MarkCompleted(brew.KindTap, "homebrew/cask-fonts")
	if err := ledger.Save(other, l); err != nil {
		t.Fatalf("Save: %v", err)
	}

	old := progressFile
	progressFile = other
	defer func() { progressFile = old }()

	out, err := runProgressCapture(t)
	if err != nil {
		t.Fatalf("runProgress: %v", err)
	}
	if !strings.Contains(out, other) {
		t.Errorf("expected the --file path in output:\n%s", out)
	}
}

func TestPrintFollowUpdate(t *testing.T) {
	l := ledger.New()
	l.MarkCompleted(brew.KindFormula, "jq")

	var buf bytes.Buffer
	printFollowUpdate(&buf, l)
	if !strings.HasPrefix(buf.String(), "\n── ") {
		t.Errorf("expected a timestamp separator, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "Last updated") {
		t.Errorf("expected the ledger summary, got:\n%s", buf.String())
	}
}
