package store

import "time"

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunAborted   = "aborted"
)

// Run is one invocation of the installer.
type Run struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   time.Time
	Source       string
	ProgressFile string
	Resumed      bool
	Profile      bool
	Status       string
	Succeeded    int
	Failed       int
	Skipped      int
}

// Attempt is one brew command run for one snapshot item.
type Attempt struct {
	ID          int64
	RunID       int64
	Kind        string
	Name        string // name as recorded in the snapshot
	Target      string // name actually passed to brew
	Outcome     string
	Reason      string
	Message     string
	ExitCode    int
	Duration    time.Duration
	AttemptedAt time.Time
}
