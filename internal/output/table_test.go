package output

import (
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/macsnap/internal/brew"
	"github.com/blackwell-systems/macsnap/internal/ledger"
	"github.com/blackwell-systems/macsnap/internal/store"
)

func TestRenderRunTable(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		runs     []*store.Run
		contains []string
	}{
		{
			name:     "no runs",
			runs:     nil,
			contains: []string{"No install runs recorded"},
		},
		{
			name: "finished and running",
			runs: []*store.Run{
				{
					ID:         2,
					StartedAt:  now.Add(-2 * time.Hour),
					FinishedAt: now.Add(-2*time.Hour + 95*time.Second),
					Status:     store.RunCompleted,
					Succeeded:  120,
					Failed:     3,
					Source:     "/Users/alice/macsnap.tar.zst",
				},
				{
					ID:        3,
					StartedAt: now.Add(-30 * time.Second),
					Status:    store.RunRunning,
				},
			},
			contains: []string{"ID", "Status", "completed", "120", "1m35s", "2 hours ago", "macsnap.tar.zst", "running", "just now"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RenderRunTable(tt.runs)
			for _, expected := range tt.contains {
				if !strings.Contains(result, expected) {
					t.Errorf("RenderRunTable() missing expected string %q\nGot:\n%s", expected, result)
				}
			}
		})
	}
}

func TestRenderAttemptTable(t *testing.T) {
	attempts := []*store.Attempt{
		{Kind: "formula", Name: "git", Target: "git", Outcome: "succeeded", Duration: 12 * time.Second},
		{Kind: "formula", Name: "pyton", Target: "python", Outcome: "succeeded"},
		{Kind: "cask", Name: "old-app", Target: "old-app", Outcome: "failed", Reason: "deprecated", Message: "has been disabled"},
	}

	result := RenderAttemptTable(attempts)
	for _, expected := range []string{"git", "12s", "pyton → python", "deprecated", "has been disabled"} {
		if !strings.Contains(result, expected) {
			t.Errorf("RenderAttemptTable() missing %q\nGot:\n%s", expected, result)
		}
	}

	if got := RenderAttemptTable(nil); !strings.Contains(got, "No attempts") {
		t.Errorf("expected empty message, got %q", got)
	}
}

func TestRenderLedger(t *testing.T) {
	l := ledger.New()
	l.MarkCompleted(brew.KindTap, "user/tools")
	l.MarkCompleted(brew.KindFormula, "git")
	l.MarkCompleted(brew.KindFormula, "jq")
	l.MarkFailed(brew.KindFormula, "foo", brew.ReasonTimeout, "")
	l.RecordRename("pyton", "python")

	result := RenderLedger(l)
	for _, expected := range []string{"Last updated: just now", "formulae", "Failed formulae:", "foo (timeout)", "pyton → python"} {
		if !strings.Contains(result, expected) {
			t.Errorf("RenderLedger() missing %q\nGot:\n%s", expected, result)
		}
	}

	empty := RenderLedger(ledger.New())
	if !strings.Contains(empty, "Last updated: never") {
		t.Errorf("expected never for empty ledger, got:\n%s", empty)
	}
	if strings.Contains(empty, "Name changes") {
		t.Error("empty ledger should not list name changes")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{45 * time.Second, "45s"},
		{3*time.Minute + 12*time.Second, "3m12s"},
		{time.Hour + 5*time.Minute, "1h05m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"bytes", 512, "512 B"},
		{"kilobytes", 1024, "1 KB"},
		{"kilobytes rounded", 1536, "2 KB"},
		{"megabytes", 1048576, "1 MB"},
		{"megabytes rounded", 10485760, "10 MB"},
		{"gigabytes", 1073741824, "1.0 GB"},
		{"gigabytes with decimal", 2147483648, "2.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatSize(tt.bytes)
			if got != tt.want {
				t.Errorf("formatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		time time.Time
		want string
	}{
		{"zero time", time.Time{}, "never"},
		{"just now", now.Add(-30 * time.Second), "just now"},
		{"one minute ago", now.Add(-1 * time.Minute), "1 minute ago"},
		{"minutes ago", now.Add(-45 * time.Minute), "45 minutes ago"},
		{"one hour ago", now.Add(-1 * time.Hour), "1 hour ago"},
		{"hours ago", now.Add(-3 * time.Hour), "3 hours ago"},
		{"one day ago", now.Add(-24 * time.Hour), "1 day ago"},
		{"days ago", now.Add(-5 * 24 * time.Hour), "5 days ago"},
		{"weeks ago", now.Add(-14 * 24 * time.Hour), "2 weeks ago"},
		{"months ago", now.Add(-90 * 24 * time.Hour), "3 months ago"},
		{"years ago", now.Add(-730 * 24 * time.Hour), "2 years ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatRelativeTime(tt.time)
			if got != tt.want {
				t.Errorf("formatRelativeTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetStatusColor(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"completed", colorGreen},
		{"succeeded", colorGreen},
		{"RENAMED", colorGreen},
		{"running", colorYellow},
		{"skipped", colorYellow},
		{"failed", colorRed},
		{"cancelled", colorRed},
		{"unknown", colorGray},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := getStatusColor(tt.status); got != tt.want {
				t.Errorf("getStatusColor(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"equal to max", "hello", 5, "hello"},
		{"longer than max", "hello world", 8, "hello..."},
		{"very short max", "hello", 2, "he"},
		{"max of 3", "hello", 3, "hel"},
		{"max of 4", "hello world", 4, "h..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
