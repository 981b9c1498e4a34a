// Package ledger persists install progress so an interrupted run can resume.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blackwell-systems/macsnap/internal/brew"
)

// Failure is a failed item and the reason it was given up on.
type Failure struct {
	Name    string
	Reason  brew.Reason
	Message string
}

// String renders the failure the way it is stored on disk: "name (reason)".
func (f Failure) String() string {
	label := string(f.Reason)
	if f.Reason == brew.ReasonOther && f.Message != "" {
		label = f.Message
	}
	if label == "" {
		return f.Name
	}
	return fmt.Sprintf("%s (%s)", f.Name, label)
}

// parseFailure is the inverse of Failure.String. Unknown labels are kept as
// the message of a ReasonOther failure.
func parseFailure(s string) Failure {
	s = strings.TrimSpace(s)
	idx := strings.Index(s, " (")
	if idx < 0 || !strings.HasSuffix(s, ")") {
		return Failure{Name: s, Reason: brew.ReasonOther}
	}
	name := s[:idx]
	label := s[idx+2 : len(s)-1]
	reason := brew.ParseReason(label)
	f := Failure{Name: name, Reason: reason}
	if reason == brew.ReasonOther && label != string(brew.ReasonOther) {
		f.Message = label
	}
	return f
}

// Ledger records which items completed, which failed, and which names were
// replaced. A (kind, name) pair is never both completed and failed.
type Ledger struct {
	completed   map[brew.Kind][]string
	failed      map[brew.Kind][]Failure
	nameChanges map[string]string
	lastUpdated time.Time
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		completed:   make(map[brew.Kind][]string),
		failed:      make(map[brew.Kind][]Failure),
		nameChanges: make(map[string]string),
	}
}

// Resolve follows recorded renames from name to its current replacement.
func (l *Ledger) Resolve(name string) string {
	seen := map[string]bool{name: true}
	for {
		next, ok := l.nameChanges[name]
		if !ok || seen[next] {
			return name
		}
		seen[next] = true
		name = next
	}
}

// IsCompleted reports whether name is recorded as completed for kind.
func (l *Ledger) IsCompleted(kind brew.Kind, name string) bool {
	for _, n := range l.completed[kind] {
		if n == name {
			return true
		}
	}
	return false
}

// IsFailed reports whether name is recorded as failed for kind.
func (l *Ledger) IsFailed(kind brew.Kind, name string) bool {
	return l.failureIndex(kind, name) >= 0
}

// Done reports whether name was already settled one way or the other.
func (l *Ledger) Done(kind brew.Kind, name string) bool {
	return l.IsCompleted(kind, name) || l.IsFailed(kind, name)
}

// MarkCompleted records name as completed, clearing any failure for it.
func (l *Ledger) MarkCompleted(kind brew.Kind, name string) {
	if idx := l.failureIndex(kind, name); idx >= 0 {
		l.failed[kind] = append(l.failed[kind][:idx], l.failed[kind][idx+1:]...)
	}
	if !l.IsCompleted(kind, name) {
		l.completed[kind] = append(l.completed[kind], name)
	}
	l.touch()
}

// MarkFailed records name as failed with reason, clearing any completion for it.
// A repeated failure replaces the earlier reason.
func (l *Ledger) MarkFailed(kind brew.Kind, name string, reason brew.Reason, message string) {
	list := l.completed[kind]
	for i, n := range list {
		if n == name {
			l.completed[kind] = append(list[:i], list[i+1:]...)
			break
		}
	}
	f := Failure{Name: name, Reason: reason, Message: message}
	if idx := l.failureIndex(kind, name); idx >= 0 {
		l.failed[kind][idx] = f
	} else {
		l.failed[kind] = append(l.failed[kind], f)
	}
	l.touch()
}

// RecordRename remembers that original should be installed as replacement.
func (l *Ledger) RecordRename(original, replacement string) {
	if original == replacement {
		return
	}
	l.nameChanges[original] = replacement
	l.touch()
}

// Completed returns the completed names for kind in the order they were recorded.
func (l *Ledger) Completed(kind brew.Kind) []string {
	return append([]string(nil), l.completed[kind]...)
}

// Failures returns the failures for kind in the order they were recorded.
func (l *Ledger) Failures(kind brew.Kind) []Failure {
	return append([]Failure(nil), l.failed[kind]...)
}

// NameChanges returns a copy of the rename map.
func (l *Ledger) NameChanges() map[string]string {
	out := make(map[string]string, len(l.nameChanges))
	for k, v := range l.nameChanges {
		out[k] = v
	}
	return out
}

// LastUpdated is the time of the most recent transition.
func (l *Ledger) LastUpdated() time.Time {
	return l.lastUpdated
}

// Empty reports whether nothing has been recorded yet.
func (l *Ledger) Empty() bool {
	for _, k := range brew.Kinds {
		if len(l.completed[k]) > 0 || len(l.failed[k]) > 0 {
			return false
		}
	}
	return len(l.nameChanges) == 0
}

func (l *Ledger) failureIndex(kind brew.Kind, name string) int {
	for i, f := range l.failed[kind] {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (l *Ledger) touch() {
	l.lastUpdated = time.Now().UTC()
}

// fileFormat is the on-disk JSON layout.
type fileFormat struct {
	CompletedTaps     []string          `json:"completedTaps"`
	CompletedFormulae []string          `json:"completedFormulae"`
	CompletedCasks    []string          `json:"completedCasks"`
	FailedTaps        []string          `json:"failedTaps"`
	FailedFormulae    []string          `json:"failedFormulae"`
	FailedCasks       []string          `json:"failedCasks"`
	NameChanges       map[string]string `json:"nameChanges"`
	LastUpdated       string            `json:"lastUpdated,omitempty"`
}

// MarshalJSON encodes the ledger in its on-disk format.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	ff := fileFormat{
		CompletedTaps:     nonNil(l.completed[brew.KindTap]),
		CompletedFormulae: nonNil(l.completed[brew.KindFormula]),
		CompletedCasks:    nonNil(l.completed[brew.KindCask]),
		FailedTaps:        renderFailures(l.failed[brew.KindTap]),
		FailedFormulae:    renderFailures(l.failed[brew.KindFormula]),
		FailedCasks:       renderFailures(l.failed[brew.KindCask]),
		NameChanges:       l.nameChanges,
	}
	if ff.NameChanges == nil {
		ff.NameChanges = map[string]string{}
	}
	if !l.lastUpdated.IsZero() {
		ff.LastUpdated = l.lastUpdated.Format(time.RFC3339)
	}
	return json.Marshal(ff)
}

// UnmarshalJSON decodes the on-disk format. Missing fields stay empty.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return err
	}

	fresh := New()
	fresh.completed[brew.KindTap] = dedupe(ff.CompletedTaps)
	fresh.completed[brew.KindFormula] = dedupe(ff.CompletedFormulae)
	fresh.completed[brew.KindCask] = dedupe(ff.CompletedCasks)

	failed := map[brew.Kind][]string{
		brew.KindTap:     ff.FailedTaps,
		brew.KindFormula: ff.FailedFormulae,
		brew.KindCask:    ff.FailedCasks,
	}
	for kind, entries := range failed {
		for _, entry := range entries {
			f := parseFailure(entry)
			if f.Name == "" || fresh.Done(kind, f.Name) {
				continue
			}
			fresh.failed[kind] = append(fresh.failed[kind], f)
		}
	}

	for k, v := range ff.NameChanges {
		fresh.nameChanges[k] = v
	}
	if ff.LastUpdated != "" {
		if t, err := time.Parse(time.RFC3339, ff.LastUpdated); err == nil {
			fresh.lastUpdated = t
		}
	}

	*l = *fresh
	return nil
}

// Read parses the ledger at path.
func Read(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}
	l := New()
	if err := json.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("failed to parse progress file: %w", err)
	}
	return l, nil
}

// Load reads the ledger at path. A missing, unreadable or corrupt file yields
// an empty ledger.
func Load(path string) *Ledger {
	l, err := Read(path)
	if err != nil {
		return New()
	}
	return l
}

// Save writes l to path atomically: the previous file survives a crash mid-write.
func Save(path string, l *Ledger) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary progress file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary progress file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temporary progress file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary progress file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set progress file mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move progress file into place: %w", err)
	}
	return nil
}

// EnsureDir creates the directory that will hold the ledger at path.
func EnsureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create progress directory: %w", err)
	}
	return nil
}

func renderFailures(fs []Failure) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.String())
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
