package prompt

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"golang.org/x/term"
)

var resolveChoices = []Choice{
	{Key: "accept", Label: "yes"},
	{Key: "decline", Label: "no"},
	{Key: "skip", Label: "skip"},
}

func TestConsoleConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   bool
		want  bool
	}{
		{"yes", "y\n", false, true},
		{"full yes", "YES\n", false, true},
		{"no", "n\n", true, false},
		{"empty uses default true", "\n", true, true},
		{"empty uses default false", "\n", false, false},
		{"retries on garbage", "maybe\ny\n", false, true},
		{"answer without newline", "y", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := NewConsole(strings.NewReader(tt.input), &out)
			got, err := c.Confirm("Continue?", tt.def)
			if err != nil {
				t.Fatalf("Confirm() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "Continue?") {
				t.Errorf("question not printed: %q", out.String())
			}
		})
	}
}

func TestConsoleConfirmEOF(t *testing.T) {
	c := NewConsole(strings.NewReader(""), &bytes.Buffer{})
	got, err := c.Confirm("Continue?", true)
	if !errors.Is(err, ErrNoAnswer) {
		t.Errorf("expected ErrNoAnswer, got %v", err)
	}
	if !got {
		t.Error("expected default on EOF")
	}
}

func TestConsoleChoose(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"first letter", "y\n", "accept"},
		{"label", "skip\n", "skip"},
		{"key", "decline\n", "decline"},
		{"empty uses default", "\n", "decline"},
		{"retries on garbage", "what\ns\n", "skip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := NewConsole(strings.NewReader(tt.input), &out)
			got, err := c.Choose("Use python instead?", resolveChoices, "decline")
			if err != nil {
				t.Fatalf("Choose() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Choose() = %q, want %q", got, tt.want)
			}
			if !strings.Contains(out.String(), "[yes/No/skip]") {
				t.Errorf("expected hint with capitalised default, got %q", out.String())
			}
		})
	}
}

func TestConsoleAssumeDefault(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("n\n"), &out)
	c.AssumeDefault = true

	ok, err := c.Confirm("Continue?", true)
	if err != nil || !ok {
		t.Errorf("Confirm() = %v, %v; want true, nil", ok, err)
	}
	key, err := c.Choose("Pick", resolveChoices, "skip")
	if err != nil || key != "skip" {
		t.Errorf("Choose() = %q, %v; want skip, nil", key, err)
	}
}

func TestScripted(t *testing.T) {
	s := &Scripted{Answers: []string{"y", "skip", "bogus"}}

	if ok, _ := s.Confirm("first?", false); !ok {
		t.Error("expected scripted yes")
	}
	if key, _ := s.Choose("second?", resolveChoices, "decline"); key != "skip" {
		t.Errorf("expected skip, got %q", key)
	}
	if _, err := s.Confirm("third?", false); err == nil {
		t.Error("expected error for non yes/no answer")
	}
	if key, _ := s.Choose("fourth?", resolveChoices, "decline"); key != "decline" {
		t.Errorf("expected default once exhausted, got %q", key)
	}
	if len(s.Asked) != 4 {
		t.Errorf("expected 4 recorded questions, got %d", len(s.Asked))
	}
}

func TestReadSecretNeedsTerminal(t *testing.T) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		t.Skip("stdin is a terminal")
	}
	var out bytes.Buffer
	if _, err := ReadSecret(&out, "Passphrase"); !errors.Is(err, ErrNotTerminal) {
		t.Errorf("ReadSecret() error = %v, want ErrNotTerminal", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no prompt without a terminal, got %q", out.String())
	}
}
