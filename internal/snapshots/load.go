package snapshots

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blackwell-systems/macsnap/internal/brew"
)

// snapshotFile is the JSON structure stored in snapshot files.
type snapshotFile struct {
	CreatedAt   *time.Time        `json:"createdAt,omitempty"`
	Hostname    string            `json:"hostname,omitempty"`
	BrewVersion string            `json:"brewVersion,omitempty"`
	Taps        []json.RawMessage `json:"taps"`
	Formulae    []json.RawMessage `json:"formulae"`
	Casks       []json.RawMessage `json:"casks"`
}

// itemFile is a formula, cask or tap entry. Casks are keyed by token.
type itemFile struct {
	Name        labelField `json:"name,omitempty"`
	Token       string     `json:"token,omitempty"`
	Tap         string     `json:"tap,omitempty"`
	Desc        string     `json:"desc,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

// Parse decodes snapshot JSON. Entries may be objects or bare name strings;
// entries without a name are dropped.
func Parse(data []byte) (*Snapshot, error) {
	var f snapshotFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot JSON: %w", err)
	}

	s := &Snapshot{
		Hostname:    f.Hostname,
		BrewVersion: f.BrewVersion,
	}
	if f.CreatedAt != nil {
		s.CreatedAt = *f.CreatedAt
	}

	var err error
	if s.Taps, err = parseItems(brew.KindTap, f.Taps); err != nil {
		return nil, err
	}
	if s.Formulae, err = parseItems(brew.KindFormula, f.Formulae); err != nil {
		return nil, err
	}
	if s.Casks, err = parseItems(brew.KindCask, f.Casks); err != nil {
		return nil, err
	}
	return s, nil
}

// labelField accepts either a string or a list of strings, as found in raw
// `brew info` output for casks, keeping the first entry.
type labelField string

func (l *labelField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = labelField(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	if len(list) > 0 {
		*l = labelField(list[0])
	}
	return nil
}

func parseItems(kind brew.Kind, raw []json.RawMessage) ([]Item, error) {
	items := make([]Item, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, msg := range raw {
		item, err := parseItem(kind, msg)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %d: %w", kind, i, err)
		}
		if item.Name == "" || seen[item.Name] {
			continue
		}
		seen[item.Name] = true
		items = append(items, item)
	}
	return items, nil
}

func parseItem(kind brew.Kind, msg json.RawMessage) (Item, error) {
	var bare string
	if err := json.Unmarshal(msg, &bare); err == nil {
		return Item{Kind: kind, Name: strings.TrimSpace(bare)}, nil
	}

	var f itemFile
	if err := json.Unmarshal(msg, &f); err != nil {
		return Item{}, err
	}
	name := string(f.Name)
	if kind == brew.KindCask && f.Token != "" {
		// cask "name" is the human label, the token is what brew installs
		name = f.Token
		if f.DisplayName == "" && string(f.Name) != f.Token {
			f.DisplayName = string(f.Name)
		}
	} else if name == "" {
		name = f.Token
	}
	return Item{
		Kind:        kind,
		Name:        strings.TrimSpace(name),
		DisplayName: f.DisplayName,
		Tap:         f.Tap,
		Desc:        f.Desc,
	}, nil
}

// Load reads and parses a snapshot JSON file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return Parse(data)
}

// Marshal encodes the snapshot. Taps are written as bare strings.
func (s *Snapshot) Marshal() ([]byte, error) {
	f := struct {
		CreatedAt   *time.Time `json:"createdAt,omitempty"`
		Hostname    string     `json:"hostname,omitempty"`
		BrewVersion string     `json:"brewVersion,omitempty"`
		Taps        []string   `json:"taps"`
		Formulae    []itemFile `json:"formulae"`
		Casks       []itemFile `json:"casks"`
	}{
		Hostname:    s.Hostname,
		BrewVersion: s.BrewVersion,
		Taps:        make([]string, 0, len(s.Taps)),
		Formulae:    make([]itemFile, 0, len(s.Formulae)),
		Casks:       make([]itemFile, 0, len(s.Casks)),
	}
	if !s.CreatedAt.IsZero() {
		f.CreatedAt = &s.CreatedAt
	}
	for _, t := range s.Taps {
		f.Taps = append(f.Taps, t.Name)
	}
	for _, it := range s.Formulae {
		f.Formulae = append(f.Formulae, itemFile{Name: labelField(it.Name), Tap: it.Tap, Desc: it.Desc, DisplayName: it.DisplayName})
	}
	for _, it := range s.Casks {
		f.Casks = append(f.Casks, itemFile{Token: it.Name, Name: labelField(it.DisplayName), Tap: it.Tap, Desc: it.Desc})
	}
	return json.MarshalIndent(f, "", "  ")
}

// Write stores the snapshot as JSON at path.
func (s *Snapshot) Write(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot data: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return nil
}
