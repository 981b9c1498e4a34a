package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/macsnap/internal/brew"
)

func TestMarkCompletedAndFailedAreDisjoint(t *testing.T) {
	l := New()

	l.MarkFailed(brew.KindFormula, "node", brew.ReasonTimeout, "")
	assert.True(t, l.IsFailed(brew.KindFormula, "node"))

	l.MarkCompleted(brew.KindFormula, "node")
	assert.True(t, l.IsCompleted(brew.KindFormula, "node"))
	assert.False(t, l.IsFailed(brew.KindFormula, "node"))

	l.MarkFailed(brew.KindFormula, "node", brew.ReasonOther, "boom")
	assert.False(t, l.IsCompleted(brew.KindFormula, "node"))
	assert.True(t, l.IsFailed(brew.KindFormula, "node"))

	// same name under another kind is independent
	assert.False(t, l.Done(brew.KindCask, "node"))
}

func TestMarkIsIdempotent(t *testing.T) {
	l := New()
	l.MarkCompleted(brew.KindTap, "a/b")
	l.MarkCompleted(brew.KindTap, "a/b")
	assert.Equal(t, []string{"a/b"}, l.Completed(brew.KindTap))

	l.MarkFailed(brew.KindCask, "x", brew.ReasonNotFound, "")
	l.MarkFailed(brew.KindCask, "x", brew.ReasonDeprecated, "")
	failures := l.Failures(brew.KindCask)
	require.Len(t, failures, 1)
	assert.Equal(t, brew.ReasonDeprecated, failures[0].Reason)
}

func TestResolve(t *testing.T) {
	l := New()
	assert.Equal(t, "foo", l.Resolve("foo"))

	l.RecordRename("foo", "foo-ng")
	assert.Equal(t, "foo-ng", l.Resolve("foo"))

	l.RecordRename("foo-ng", "foo-ng2")
	assert.Equal(t, "foo-ng2", l.Resolve("foo"))

	// cycles terminate
	l.RecordRename("foo-ng2", "foo")
	assert.NotEmpty(t, l.Resolve("foo"))

	l.RecordRename("same", "same")
	assert.NotContains(t, l.NameChanges(), "same")
}

func TestFailureString(t *testing.T) {
	tests := []struct {
		failure Failure
		want    string
	}{
		{Failure{Name: "foo", Reason: brew.ReasonTimeout}, "foo (timeout)"},
		{Failure{Name: "bar", Reason: brew.ReasonUserSkipped}, "bar (skipped by user)"},
		{Failure{Name: "baz", Reason: brew.ReasonOther, Message: "checksum mismatch"}, "baz (checksum mismatch)"},
		{Failure{Name: "qux", Reason: brew.ReasonOther}, "qux (error)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.failure.String())
			assert.Equal(t, tt.failure, parseFailure(tt.want))
		})
	}
}

func TestParseFailureUndecorated(t *testing.T) {
	f := parseFailure("plain")
	assert.Equal(t, "plain", f.Name)
	assert.Equal(t, brew.ReasonOther, f.Reason)

	f = parseFailure("odd (message (nested))")
	assert.Equal(t, "odd", f.Name)
	assert.Equal(t, "message (nested)", f.Message)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")

	l := New()
	l.MarkCompleted(brew.KindTap, "homebrew/cask-fonts")
	l.MarkCompleted(brew.KindFormula, "git")
	l.MarkFailed(brew.KindFormula, "foo", brew.ReasonTimeout, "")
	l.MarkCompleted(brew.KindCask, "firefox")
	l.RecordRename("pyton", "python")

	require.NoError(t, Save(path, l))

	loaded := Load(path)
	assert.Equal(t, []string{"homebrew/cask-fonts"}, loaded.Completed(brew.KindTap))
	assert.Equal(t, []string{"git"}, loaded.Completed(brew.KindFormula))
	assert.Equal(t, []string{"firefox"}, loaded.Completed(brew.KindCask))
	assert.True(t, loaded.IsFailed(brew.KindFormula, "foo"))
	assert.Equal(t, "python", loaded.Resolve("pyton"))
	assert.False(t, loaded.LastUpdated().IsZero())
}

func TestSaveWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")

	l := New()
	l.MarkFailed(brew.KindFormula, "foo", brew.ReasonTimeout, "")
	require.NoError(t, Save(path, l))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{
		"completedTaps", "completedFormulae", "completedCasks",
		"failedTaps", "failedFormulae", "failedCasks",
		"nameChanges", "lastUpdated",
	} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, []interface{}{"foo (timeout)"}, raw["failedFormulae"])
	assert.Equal(t, []interface{}{}, raw["completedTaps"])
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")

	require.NoError(t, Save(path, New()))
	require.NoError(t, Save(path, New()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "progress.json", entries[0].Name())
}

func TestSaveFailureKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")

	first := New()
	first.MarkCompleted(brew.KindFormula, "git")
	require.NoError(t, Save(path, first))

	// saving into a missing directory fails without touching the original
	err := Save(filepath.Join(dir, "missing", "progress.json"), New())
	assert.Error(t, err)

	assert.True(t, Load(path).IsCompleted(brew.KindFormula, "git"))
}

func TestLoadMissingFile(t *testing.T) {
	l := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NotNil(t, l)
	assert.True(t, l.Empty())
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	l := Load(path)
	require.NotNil(t, l)
	assert.True(t, l.Empty())

	_, err := Read(path)
	assert.Error(t, err)
}

func TestLoadOlderFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	// older files had no casks, failures or renames
	content := `{"completedTaps": ["a/b"], "completedFormulae": ["git", "git", ""]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	l := Load(path)
	assert.Equal(t, []string{"a/b"}, l.Completed(brew.KindTap))
	assert.Equal(t, []string{"git"}, l.Completed(brew.KindFormula))
	assert.Empty(t, l.Completed(brew.KindCask))
	assert.Empty(t, l.NameChanges())
	assert.True(t, l.LastUpdated().IsZero())
}

func TestLoadRepairsOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	content := `{"completedFormulae": ["git"], "failedFormulae": ["git (timeout)", "jq (not found)"]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	l := Load(path)
	assert.True(t, l.IsCompleted(brew.KindFormula, "git"))
	assert.False(t, l.IsFailed(brew.KindFormula, "git"))

	failures := l.Failures(brew.KindFormula)
	require.Len(t, failures, 1)
	assert.Equal(t, Failure{Name: "jq", Reason: brew.ReasonNotFound}, failures[0])
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "progress.json")
	require.NoError(t, EnsureDir(path))
	require.NoError(t, Save(path, New()))
}
