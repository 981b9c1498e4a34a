// Package output provides terminal output utilities for macsnap.
//
// This package includes:
//   - Table rendering for install history runs, attempts and the progress ledger
//   - Colour status printers for operator-facing messages
//   - Progress bars for long-running operations
//   - Spinners for indeterminate operations
//   - Human-readable formatting for sizes, dates and durations
//
// Tables use box-drawing rules and ANSI colour codes when stdout is a terminal.
// Progress indicators are thread-safe and can be used from multiple goroutines.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/macsnap/internal/brew"
	"github.com/blackwell-systems/macsnap/internal/ledger"
	"github.com/blackwell-systems/macsnap/internal/store"
)

// ANSI color codes for status display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderRunTable renders a table of install runs.
func RenderRunTable(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No install runs recorded.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("%-5s %-16s %-10s %-7s %-7s %-7s %-9s %s\n",
		"ID", "Started", "Status", "OK", "Failed", "Skipped", "Duration", "Source"))
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	// Rows
	for _, run := range runs {
		duration := "-"
		if !run.FinishedAt.IsZero() {
			duration = FormatDuration(run.FinishedAt.Sub(run.StartedAt))
		}
		status := fmt.Sprintf("%-10s", run.Status)

		sb.WriteString(fmt.Sprintf("%-5d %-16s %s %-7d %-7d %-7d %-9s %s\n",
			run.ID,
			formatRelativeTime(run.StartedAt),
			colorize(getStatusColor(run.Status), status),
			run.Succeeded,
			run.Failed,
			run.Skipped,
			duration,
			truncate(run.Source, 40)))
	}

	return sb.String()
}

// RenderAttemptTable renders the attempts of one run.
func RenderAttemptTable(attempts []*store.Attempt) string {
	if len(attempts) == 0 {
		return "No attempts recorded for this run.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-8s %-28s %-10s %-16s %-8s %s\n",
		"Kind", "Item", "Outcome", "Reason", "Time", "Detail"))
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	for _, a := range attempts {
		item := a.Name
		if a.Target != "" && a.Target != a.Name {
			item = a.Name + " → " + a.Target
		}
		outcome := fmt.Sprintf("%-10s", a.Outcome)

		sb.WriteString(fmt.Sprintf("%-8s %-28s %s %-16s %-8s %s\n",
			a.Kind,
			truncate(item, 28),
			colorize(getStatusColor(a.Outcome), outcome),
			truncate(a.Reason, 16),
			FormatDuration(a.Duration),
			truncate(a.Message, 40)))
	}

	return sb.String()
}

// RenderLedger renders the contents of a progress ledger.
func RenderLedger(l *ledger.Ledger) string {
	var sb strings.Builder

	updated := "never"
	if !l.LastUpdated().IsZero() {
		updated = formatRelativeTime(l.LastUpdated())
	}
	sb.WriteString(fmt.Sprintf("Last updated: %s\n\n", updated))

	sb.WriteString(fmt.Sprintf("%-10s %-10s %-8s\n", "Kind", "Completed", "Failed"))
	sb.WriteString(strings.Repeat("─", 30))
	sb.WriteString("\n")
	for _, kind := range brew.Kinds {
		sb.WriteString(fmt.Sprintf("%-10s %-10d %-8d\n",
			kind.Plural(),
			len(l.Completed(kind)),
			len(l.Failures(kind))))
	}

	for _, kind := range brew.Kinds {
		failures := l.Failures(kind)
		if len(failures) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("\nFailed %s:\n", kind.Plural()))
		for _, f := range failures {
			sb.WriteString("  " + colorize(colorRed, "✗") + " " + f.String() + "\n")
		}
	}

	changes := l.NameChanges()
	if len(changes) > 0 {
		originals := make([]string, 0, len(changes))
		for k := range changes {
			originals = append(originals, k)
		}
		sort.Strings(originals)

		sb.WriteString("\nName changes:\n")
		for _, orig := range originals {
			sb.WriteString(fmt.Sprintf("  %s → %s\n", orig, changes[orig]))
		}
	}

	return sb.String()
}

// FormatDuration renders d for humans, e.g. "45s", "3m12s", "1h05m".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatSize converts bytes to human-readable size (GB, MB, KB).
func FormatSize(bytes int64) string {
	return formatSize(bytes)
}

// formatSize converts bytes to human-readable size (GB, MB, KB).
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.0f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.0f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / 24 / 7)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	case diff < 365*24*time.Hour:
		months := int(diff.Hours() / 24 / 30)
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	default:
		years := int(diff.Hours() / 24 / 365)
		if years == 1 {
			return "1 year ago"
		}
		return fmt.Sprintf("%d years ago", years)
	}
}

// getStatusColor returns the ANSI color code for a run or attempt status.
func getStatusColor(status string) string {
	switch strings.ToLower(status) {
	case "completed", "succeeded", "renamed":
		return colorGreen
	case "running", "skipped":
		return colorYellow
	case "failed", "cancelled", "aborted":
		return colorRed
	default:
		return colorGray
	}
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
