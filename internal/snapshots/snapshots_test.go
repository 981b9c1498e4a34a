package snapshots

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/blackwell-systems/macsnap/internal/brew"
)

func names(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func formulae(ns ...string) *Snapshot {
	s := &Snapshot{}
	for _, n := range ns {
		s.Formulae = append(s.Formulae, Item{Kind: brew.KindFormula, Name: n})
	}
	return s
}

func TestOrderedPriority(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		priority []string
		want     []string
	}{
		{
			name:     "priority first regardless of input order",
			input:    []string{"jq", "wget", "git"},
			priority: DefaultPriority,
			want:     []string{"git", "wget", "jq"},
		},
		{
			name:     "already ordered",
			input:    []string{"git", "wget", "jq"},
			priority: DefaultPriority,
			want:     []string{"git", "wget", "jq"},
		},
		{
			name:     "full priority list",
			input:    []string{"node", "openssl", "curl", "ripgrep", "git", "wget"},
			priority: DefaultPriority,
			want:     []string{"git", "curl", "wget", "openssl", "node", "ripgrep"},
		},
		{
			name:     "no priority entries present",
			input:    []string{"b", "a", "c"},
			priority: DefaultPriority,
			want:     []string{"b", "a", "c"},
		},
		{
			name:     "empty priority keeps order",
			input:    []string{"wget", "git"},
			priority: nil,
			want:     []string{"wget", "git"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(formulae(tt.input...).Ordered(brew.KindFormula, tt.priority))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Ordered() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderedOnlyAffectsFormulae(t *testing.T) {
	s := &Snapshot{
		Casks: []Item{{Kind: brew.KindCask, Name: "wget"}, {Kind: brew.KindCask, Name: "git"}},
	}
	got := names(s.Ordered(brew.KindCask, DefaultPriority))
	if want := []string{"wget", "git"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Ordered(cask) = %v, want %v", got, want)
	}
}

func TestParse(t *testing.T) {
	data := `{
  "taps": ["user/tools", {"name": "other/tap"}, ""],
  "formulae": [
    {"name": "git", "tap": "homebrew/core", "desc": "Distributed revision control system"},
    "jq",
    {"token": "legacy"},
    {"name": "git"}
  ],
  "casks": [
    {"token": "visual-studio-code", "name": "Microsoft Visual Studio Code", "tap": "homebrew/cask"},
    {"token": "iterm2", "name": ["iTerm2"]},
    {"name": "firefox"}
  ]
}`

	s, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := names(s.Taps); !reflect.DeepEqual(got, []string{"user/tools", "other/tap"}) {
		t.Errorf("taps = %v", got)
	}
	if got := names(s.Formulae); !reflect.DeepEqual(got, []string{"git", "jq", "legacy"}) {
		t.Errorf("formulae = %v", got)
	}
	if got := names(s.Casks); !reflect.DeepEqual(got, []string{"visual-studio-code", "iterm2", "firefox"}) {
		t.Errorf("casks = %v", got)
	}

	if s.Formulae[0].Tap != "homebrew/core" || s.Formulae[0].Desc == "" {
		t.Errorf("formula metadata not parsed: %+v", s.Formulae[0])
	}
	if s.Casks[0].DisplayName != "Microsoft Visual Studio Code" {
		t.Errorf("expected cask display name, got %q", s.Casks[0].DisplayName)
	}
	if s.Casks[1].DisplayName != "iTerm2" {
		t.Errorf("expected display name from name list, got %q", s.Casks[1].DisplayName)
	}
	for _, it := range s.Casks {
		if it.Kind != brew.KindCask {
			t.Errorf("expected cask kind for %s, got %s", it.Name, it.Kind)
		}
	}
}

func TestParseMissingSections(t *testing.T) {
	s, err := Parse([]byte(`{"formulae": ["git"]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(s.Taps) != 0 || len(s.Casks) != 0 || len(s.Formulae) != 1 {
		t.Errorf("unexpected snapshot: %+v", s)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := Parse([]byte(`{"formulae": [42]}`)); err == nil {
		t.Error("expected error for invalid entry")
	}
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")

	orig := &Snapshot{
		BrewVersion: "4.3.1",
		Taps:        []Item{{Kind: brew.KindTap, Name: "user/tools"}},
		Formulae:    []Item{{Kind: brew.KindFormula, Name: "git", Tap: "homebrew/core"}},
		Casks:       []Item{{Kind: brew.KindCask, Name: "iterm2", DisplayName: "iTerm2"}},
	}
	if err := orig.Write(path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.BrewVersion != "4.3.1" {
		t.Errorf("brew version = %q", loaded.BrewVersion)
	}
	if !reflect.DeepEqual(loaded.Taps, orig.Taps) ||
		!reflect.DeepEqual(loaded.Formulae, orig.Formulae) ||
		!reflect.DeepEqual(loaded.Casks, orig.Casks) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, orig)
	}
	if loaded.Len() != 3 {
		t.Errorf("Len() = %d, want 3", loaded.Len())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCollectTaps(t *testing.T) {
	listed := []string{"homebrew/core", "user/tools", "homebrew/cask"}
	items := []Item{
		{Name: "k9s", Tap: "derailed/k9s"},
		{Name: "git", Tap: "homebrew/core"},
		{Name: "tool", Tap: "user/tools"},
	}

	got := names(collectTaps(listed, items))
	if want := []string{"user/tools", "derailed/k9s"}; !reflect.DeepEqual(got, want) {
		t.Errorf("collectTaps() = %v, want %v", got, want)
	}
}

func TestCollect(t *testing.T) {
	script := `#!/bin/sh
case "$1" in
--version) echo "Homebrew 4.3.1" ;;
tap) printf "homebrew/core\nderailed/k9s\n" ;;
info) cat <<'JSON'
{"formulae":[
  {"name":"git","tap":"homebrew/core","installed":[{"version":"2.44.0","installed_on_request":true}]},
  {"name":"pcre2","tap":"homebrew/core","installed":[{"version":"10.43","installed_on_request":false}]},
  {"name":"k9s","tap":"derailed/k9s","installed":[{"version":"0.32.0","installed_on_request":true}]}
 ],
 "casks":[{"token":"iterm2","name":["iTerm2"],"tap":"homebrew/cask","version":"3.5.0"}]}
JSON
;;
*) exit 1 ;;
esac
`
	brewPath := filepath.Join(t.TempDir(), "brew")
	if err := os.WriteFile(brewPath, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake brew: %v", err)
	}

	s, err := Collect(context.Background(), CollectOptions{BrewPath: brewPath})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if s.BrewVersion != "4.3.1" {
		t.Errorf("brew version = %q", s.BrewVersion)
	}
	if got := names(s.Formulae); !reflect.DeepEqual(got, []string{"git", "k9s"}) {
		t.Errorf("formulae = %v", got)
	}
	if got := names(s.Casks); !reflect.DeepEqual(got, []string{"iterm2"}) {
		t.Errorf("casks = %v", got)
	}
	if got := names(s.Taps); !reflect.DeepEqual(got, []string{"derailed/k9s"}) {
		t.Errorf("taps = %v", got)
	}

	all, err := Collect(context.Background(), CollectOptions{BrewPath: brewPath, IncludeDependencies: true})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(all.Formulae) != 3 {
		t.Errorf("expected dependencies to be included, got %v", names(all.Formulae))
	}
}

func TestItemLabel(t *testing.T) {
	if got := (Item{Name: "iterm2", DisplayName: "iTerm2"}).Label(); got != "iTerm2 (iterm2)" {
		t.Errorf("Label() = %q", got)
	}
	if got := (Item{Name: "git"}).Label(); got != "git" {
		t.Errorf("Label() = %q", got)
	}
}
