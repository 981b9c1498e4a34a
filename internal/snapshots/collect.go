package snapshots

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/blackwell-systems/macsnap/internal/brew"
)

// builtinTaps are always present and never recorded.
var builtinTaps = map[string]bool{
	"homebrew/core": true,
	"homebrew/cask": true,
}

// CollectOptions controls what Collect records.
type CollectOptions struct {
	// BrewPath is the brew binary, "brew" when empty.
	BrewPath string
	// IncludeDependencies records formulae that were only installed as
	// dependencies of something else.
	IncludeDependencies bool
}

// Collect scans the installed Homebrew state into a Snapshot.
func Collect(ctx context.Context, opts CollectOptions) (*Snapshot, error) {
	brewPath := opts.BrewPath
	if brewPath == "" {
		brewPath = "brew"
	}

	version, err := brew.Version(ctx, brewPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get brew version: %w", err)
	}

	pkgs, err := brew.ListInstalled(ctx, brewPath, !opts.IncludeDependencies)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed packages: %w", err)
	}

	taps, err := brew.ListTaps(ctx, brewPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list taps: %w", err)
	}

	s := &Snapshot{
		CreatedAt:   time.Now().UTC(),
		BrewVersion: version,
	}
	s.Hostname, _ = os.Hostname()

	for _, pkg := range pkgs {
		item := Item{
			Name:        pkg.Name,
			DisplayName: pkg.DisplayName,
			Tap:         pkg.Tap,
			Desc:        pkg.Desc,
		}
		if pkg.IsCask {
			item.Kind = brew.KindCask
			s.Casks = append(s.Casks, item)
		} else {
			item.Kind = brew.KindFormula
			s.Formulae = append(s.Formulae, item)
		}
	}

	s.Taps = collectTaps(taps, s.Formulae, s.Casks)
	return s, nil
}

// collectTaps merges the tap list with the taps referenced by items, in that
// order, without duplicates or builtin taps.
func collectTaps(listed []string, groups ...[]Item) []Item {
	seen := make(map[string]bool)
	var taps []Item
	add := func(name string) {
		if name == "" || builtinTaps[name] || seen[name] {
			return
		}
		seen[name] = true
		taps = append(taps, Item{Kind: brew.KindTap, Name: name})
	}

	for _, t := range listed {
		add(t)
	}
	for _, items := range groups {
		for _, it := range items {
			add(it.Tap)
		}
	}
	return taps
}
