package snapshots

import (
	"time"

	"github.com/blackwell-systems/macsnap/internal/brew"
)

// Item is one installable entry of a snapshot.
type Item struct {
	Kind        brew.Kind
	Name        string
	DisplayName string
	Tap         string
	Desc        string
}

// Label returns the display name when one is known, otherwise the name.
func (i Item) Label() string {
	if i.DisplayName != "" && i.DisplayName != i.Name {
		return i.DisplayName + " (" + i.Name + ")"
	}
	return i.Name
}

// Snapshot is the recorded Homebrew state of a machine. It is read once and
// not modified afterwards.
type Snapshot struct {
	CreatedAt   time.Time
	Hostname    string
	BrewVersion string
	Taps        []Item
	Formulae    []Item
	Casks       []Item
}

// Items returns the entries of the given kind in snapshot order.
func (s *Snapshot) Items(kind brew.Kind) []Item {
	switch kind {
	case brew.KindTap:
		return s.Taps
	case brew.KindFormula:
		return s.Formulae
	case brew.KindCask:
		return s.Casks
	default:
		return nil
	}
}

// Len returns the number of entries across all kinds.
func (s *Snapshot) Len() int {
	return len(s.Taps) + len(s.Formulae) + len(s.Casks)
}

// DefaultPriority lists formulae that later installs commonly depend on.
var DefaultPriority = []string{"git", "curl", "wget", "openssl"}

// Ordered returns the entries of kind in install order. Formulae named in
// priority come first, in priority order; everything else keeps snapshot order.
func (s *Snapshot) Ordered(kind brew.Kind, priority []string) []Item {
	items := s.Items(kind)
	if kind != brew.KindFormula || len(priority) == 0 {
		return append([]Item(nil), items...)
	}

	byName := make(map[string]int, len(items))
	for i, it := range items {
		if _, dup := byName[it.Name]; !dup {
			byName[it.Name] = i
		}
	}

	ordered := make([]Item, 0, len(items))
	taken := make(map[int]bool, len(priority))
	for _, name := range priority {
		if idx, ok := byName[name]; ok && !taken[idx] {
			ordered = append(ordered, items[idx])
			taken[idx] = true
		}
	}
	for i, it := range items {
		if !taken[i] {
			ordered = append(ordered, it)
		}
	}
	return ordered
}
