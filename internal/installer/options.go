// Package installer replays a snapshot onto this machine: taps, then
// formulae, then casks, one at a time, checkpointing progress after every item.
package installer

import (
	"time"

	"github.com/blackwell-systems/macsnap/internal/brew"
	"github.com/blackwell-systems/macsnap/internal/snapshots"
)

// Options configures an install run.
type Options struct {
	// Resume continues from the ledger at ProgressFile instead of starting fresh.
	Resume bool
	// ProgressFile is where the ledger is saved. Empty disables persistence.
	ProgressFile string
	// Timeout bounds each install command.
	Timeout time.Duration
	// PauseOnError asks the operator to continue or cancel after each failure.
	PauseOnError bool
	// UseProfile installs into a user-writable prefix; casks are skipped.
	UseProfile bool
	// SkipToolchainCheck disables the Command Line Tools pre-flight.
	SkipToolchainCheck bool
	// SkipUpdate disables `brew update` before installing.
	SkipUpdate bool
	// AppDir is passed to casks as --appdir when set.
	AppDir string
	// Priority lists formulae installed ahead of all others, in order.
	Priority []string
	// Stream echoes brew output to the console while items install.
	Stream bool
	// Source names the archive being installed, for the history record.
	Source string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Timeout:      brew.DefaultTimeout,
		PauseOnError: true,
		Priority:     snapshots.DefaultPriority,
		Stream:       true,
	}
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return brew.DefaultTimeout
	}
	return o.Timeout
}
