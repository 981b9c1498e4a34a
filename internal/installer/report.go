package installer

import (
	"fmt"
	"sort"
	"time"

	"github.com/blackwell-systems/macsnap/internal/brew"
	"github.com/blackwell-systems/macsnap/internal/ledger"
	"github.com/blackwell-systems/macsnap/internal/output"
	"github.com/blackwell-systems/macsnap/internal/snapshots"
)

// Rename is a replacement name accepted by the operator.
type Rename struct {
	Kind brew.Kind
	From string
	To   string
}

// Report summarises a run.
type Report struct {
	Counts        map[brew.Kind]Counts
	Renames       []Rename
	Failures      []Outcome
	PolicySkipped []snapshots.Item
	// NameChanges is every rename known to the ledger, including earlier runs.
	NameChanges      map[string]string
	Duration         time.Duration
	RunID            int64
	SaveFailures     int
	ToolchainMissing bool
	BrewMissing      bool
	Cancelled        bool
}

// Report builds the end-of-run summary.
func (s *Session) Report(l *ledger.Ledger) *Report {
	r := &Report{
		Counts:           make(map[brew.Kind]Counts, len(s.Counts)),
		Duration:         time.Since(s.Started),
		RunID:            s.RunID,
		SaveFailures:     s.SaveFailures,
		ToolchainMissing: s.ToolchainMissing,
		BrewMissing:      s.BrewMissing,
		Cancelled:        s.Cancelled,
	}
	for k, c := range s.Counts {
		r.Counts[k] = *c
	}
	if l != nil {
		r.NameChanges = l.NameChanges()
	}

	for _, o := range s.Outcomes {
		switch {
		case o.Status == Renamed:
			r.Renames = append(r.Renames, Rename{Kind: o.Item.Kind, From: o.Item.Name, To: o.RenamedTo})
		case o.Status == Failed:
			r.Failures = append(r.Failures, o)
		case o.Status == Skipped && o.Reason == brew.ReasonPolicySkipped:
			r.PolicySkipped = append(r.PolicySkipped, o.Item)
		}
	}
	return r
}

func (s *Session) totalPrevious() int {
	n := 0
	for _, c := range s.Counts {
		n += c.Previous
	}
	return n
}

// Totals sums the counts of every kind.
func (r *Report) Totals() Counts {
	var t Counts
	for _, c := range r.Counts {
		t.Succeeded += c.Succeeded
		t.Failed += c.Failed
		t.Skipped += c.Skipped
		t.Previous += c.Previous
	}
	return t
}

// FailuresByReason groups failures by reason. Reasons are returned in a
// stable order alongside the groups.
func (r *Report) FailuresByReason() ([]brew.Reason, map[brew.Reason][]Outcome) {
	groups := make(map[brew.Reason][]Outcome)
	for _, f := range r.Failures {
		groups[f.Reason] = append(groups[f.Reason], f)
	}
	reasons := make([]brew.Reason, 0, len(groups))
	for reason := range groups {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons, groups
}

// Render prints the summary.
func (r *Report) Render(c *output.Console) {
	c.Section("Homebrew summary")

	for _, kind := range brew.Kinds {
		counts := r.Counts[kind]
		if counts == (Counts{}) {
			continue
		}
		line := formatCounts(kind, counts)
		if counts.Failed > 0 {
			c.Warn("%s", line)
		} else {
			c.Info("%s", line)
		}
	}

	if len(r.PolicySkipped) > 0 {
		c.Plain("")
		c.Plain("Skipped in profile mode (%d):", len(r.PolicySkipped))
		for _, it := range r.PolicySkipped {
			c.Faint("  - %s", it.Label())
		}
	}

	if len(r.Renames) > 0 {
		c.Plain("")
		c.Plain("Installed under a new name (review these):")
		for _, rn := range r.Renames {
			c.Plain("  %s %s → %s", rn.Kind, rn.From, rn.To)
		}
	}

	if len(r.Failures) > 0 {
		c.Plain("")
		c.Plain("Failed (%d):", len(r.Failures))
		reasons, groups := r.FailuresByReason()
		for _, reason := range reasons {
			c.Plain("  %s:", reason)
			for _, f := range groups[reason] {
				if f.Message != "" {
					c.Failure("%s %s: %s", f.Item.Kind, f.Item.Name, f.Message)
				} else {
					c.Failure("%s %s", f.Item.Kind, f.Item.Name)
				}
			}
		}
	}

	if r.ToolchainMissing {
		c.Warn("Xcode Command Line Tools were missing during this run")
	}
	if r.SaveFailures > 0 {
		c.Warn("Progress could not be saved %d times", r.SaveFailures)
	}
	if r.Cancelled {
		c.Warn("Cancelled; run again with --resume to continue")
	}
	c.Plain("")
	c.Plain("Took %s", output.FormatDuration(r.Duration))
}

func formatCounts(kind brew.Kind, c Counts) string {
	line := fmt.Sprintf("%-9s %d installed", kind.Plural()+":", c.Succeeded)
	if c.Failed > 0 {
		line += fmt.Sprintf(", %d failed", c.Failed)
	}
	if c.Skipped > 0 {
		line += fmt.Sprintf(", %d skipped", c.Skipped)
	}
	if c.Previous > 0 {
		line += fmt.Sprintf(", %d from earlier runs", c.Previous)
	}
	return line
}
