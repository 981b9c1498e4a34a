package installer

import (
	"time"

	"github.com/blackwell-systems/macsnap/internal/brew"
	"github.com/blackwell-systems/macsnap/internal/snapshots"
)

// Status is the disposition of one item in a run.
type Status int

const (
	Succeeded Status = iota
	Failed
	Skipped
	Renamed
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Outcome is the result of attempting one item.
type Outcome struct {
	Item      snapshots.Item
	Status    Status
	Reason    brew.Reason
	Message   string
	RenamedTo string
	Duration  time.Duration
}

// Counts tallies outcomes for one kind.
type Counts struct {
	Succeeded int
	Failed    int
	Skipped   int
	// Previous counts items settled by an earlier run.
	Previous int
}

// Session is the state of one install run. It is rebuilt every invocation;
// everything durable lives in the ledger.
type Session struct {
	Items    []snapshots.Item
	Index    int
	Counts   map[brew.Kind]*Counts
	Outcomes []Outcome
	Started  time.Time

	RunID            int64
	SaveFailures     int
	ToolchainMissing bool
	BrewMissing      bool
	Cancelled        bool
}

func newSession() *Session {
	s := &Session{
		Counts:  make(map[brew.Kind]*Counts, len(brew.Kinds)),
		Started: time.Now(),
	}
	for _, k := range brew.Kinds {
		s.Counts[k] = &Counts{}
	}
	return s
}

// record applies an outcome to the running totals.
func (s *Session) record(o Outcome) {
	c := s.Counts[o.Item.Kind]
	switch o.Status {
	case Succeeded, Renamed:
		c.Succeeded++
	case Failed:
		c.Failed++
	case Skipped:
		c.Skipped++
	}
	s.Outcomes = append(s.Outcomes, o)
}

// previous counts an item that an earlier run already settled.
func (s *Session) previous(kind brew.Kind) {
	s.Counts[kind].Previous++
}

// Remaining is the number of items not yet processed, counting the one in flight.
func (s *Session) Remaining() int {
	return len(s.Items) - s.Index
}
