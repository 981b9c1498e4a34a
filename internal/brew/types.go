package brew

import (
	"fmt"
	"time"
)

// Kind identifies the three kinds of installable Homebrew items.
type Kind string

const (
	KindTap     Kind = "tap"
	KindFormula Kind = "formula"
	KindCask    Kind = "cask"
)

// Kinds lists every kind in install order.
var Kinds = []Kind{KindTap, KindFormula, KindCask}

// Plural returns the display label used in summaries ("taps", "formulae", "casks").
func (k Kind) Plural() string {
	switch k {
	case KindTap:
		return "taps"
	case KindFormula:
		return "formulae"
	case KindCask:
		return "casks"
	default:
		return string(k)
	}
}

// Reason is the closed set of failure classifications for a brew command.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonAlreadyPresent Reason = "already present"
	ReasonNotFound       Reason = "not found"
	ReasonDeprecated     Reason = "deprecated"
	ReasonTimeout        Reason = "timeout"
	ReasonNeedsAdmin     Reason = "needs admin"
	ReasonUserSkipped    Reason = "skipped by user"
	ReasonPolicySkipped  Reason = "skipped by policy"
	ReasonOther          Reason = "error"
)

// ParseReason maps a ledger/db label back to a Reason. Unknown labels map to ReasonOther.
func ParseReason(s string) Reason {
	switch r := Reason(s); r {
	case ReasonAlreadyPresent, ReasonNotFound, ReasonDeprecated, ReasonTimeout,
		ReasonNeedsAdmin, ReasonUserSkipped, ReasonPolicySkipped, ReasonNone:
		return r
	default:
		return ReasonOther
	}
}

// Resolvable reports whether a failure with this reason may be fixed by
// installing under a different name.
func (r Reason) Resolvable() bool {
	return r == ReasonNotFound || r == ReasonDeprecated
}

// Status is the coarse outcome of a single command.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
)

// Command describes one brew invocation for one item.
type Command struct {
	Args    []string
	Item    string
	Timeout time.Duration
	Stream  bool
}

// Result is what the runner reports back for a Command.
type Result struct {
	Status   Status
	Reason   Reason
	Message  string
	Output   string
	ExitCode int
	Duration time.Duration
}

// OK reports whether the command succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSucceeded
}

// Error renders a failed result as an error value, or nil on success.
func (r Result) Error() error {
	if r.OK() {
		return nil
	}
	if r.Message != "" {
		return fmt.Errorf("%s: %s", r.Reason, r.Message)
	}
	return fmt.Errorf("%s", r.Reason)
}

// Package represents an installed Homebrew formula or cask.
type Package struct {
	Name        string
	DisplayName string
	Version     string
	Tap         string
	Desc        string
	IsCask      bool
}
