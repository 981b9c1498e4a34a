package sensitive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testWorkFactor keeps scrypt fast in tests.
const testWorkFactor = 10

func writeFile(t *testing.T, path, body string, perm os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(body), perm))
	require.NoError(t, os.Chmod(path, perm))
}

func sampleHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	writeFile(t, filepath.Join(home, ".ssh", "id_ed25519"), "PRIVATE", 0600)
	writeFile(t, filepath.Join(home, ".ssh", "id_ed25519.pub"), "PUBLIC", 0644)
	writeFile(t, filepath.Join(home, ".aws", "credentials"), "[default]", 0600)
	writeFile(t, filepath.Join(home, ".npmrc"), "//registry:_authToken=x", 0644)
	writeFile(t, filepath.Join(home, ".zshrc"), "not sensitive", 0644)
	return home
}

func TestCollect_Plain(t *testing.T) {
	home := sampleHome(t)
	dest := filepath.Join(t.TempDir(), "sensitive")

	m, err := (&Collector{Home: home}).Collect(dest)
	require.NoError(t, err)
	assert.False(t, m.Encrypted)

	paths := make([]string, 0, len(m.Files))
	for _, e := range m.Files {
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{".ssh/id_ed25519", ".ssh/id_ed25519.pub", ".aws/credentials", ".npmrc"}, paths)
	assert.Equal(t, map[string]int{"ssh": 2, "aws": 1, "npm": 1}, m.Summary())
	assert.Equal(t, []string{"aws", "npm", "ssh"}, m.Categories())

	data, err := os.ReadFile(filepath.Join(dest, ".ssh__id_ed25519"))
	require.NoError(t, err)
	assert.Equal(t, "PRIVATE", string(data))

	loaded, err := ReadManifest(dest)
	require.NoError(t, err)
	assert.Len(t, loaded.Files, 4)
}

func TestCollect_EmptyHome(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "sensitive")
	m, err := (&Collector{Home: t.TempDir()}).Collect(dest)
	require.NoError(t, err)
	assert.Empty(t, m.Files)
	assert.FileExists(t, filepath.Join(dest, ManifestFile))
}

func TestCollect_EncryptedRoundTrip(t *testing.T) {
	home := sampleHome(t)
	dest := filepath.Join(t.TempDir(), "sensitive")

	m, err := (&Collector{Home: home, Passphrase: "hunter2", WorkFactor: testWorkFactor}).Collect(dest)
	require.NoError(t, err)
	require.True(t, m.Encrypted)

	stored := filepath.Join(dest, ".ssh__id_ed25519.age")
	ciphertext, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "PRIVATE")

	target := t.TempDir()
	writeFile(t, filepath.Join(target, ".npmrc"), "old", 0644)

	at := time.Unix(1700000000, 0)
	res, err := (&Installer{Home: target, Passphrase: "hunter2", Now: func() time.Time { return at }}).Install(dest)
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	assert.Len(t, res.Installed, 4)

	key := filepath.Join(target, ".ssh", "id_ed25519")
	data, err := os.ReadFile(key)
	require.NoError(t, err)
	assert.Equal(t, "PRIVATE", string(data))

	info, err := os.Stat(key)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	backup := filepath.Join(target, ".npmrc.backup.1700000000")
	assert.Equal(t, backup, res.Backups[filepath.Join(target, ".npmrc")])
	old, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
}

func TestInstall_KeyRequired(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "sensitive")
	_, err := (&Collector{Home: sampleHome(t), Passphrase: "pw", WorkFactor: testWorkFactor}).Collect(dest)
	require.NoError(t, err)

	target := t.TempDir()
	_, err = (&Installer{Home: target}).Install(dest)
	assert.ErrorIs(t, err, ErrKeyRequired)
	assert.NoFileExists(t, filepath.Join(target, ".npmrc"))
}

func TestInstall_WrongKeyWritesNothing(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "sensitive")
	_, err := (&Collector{Home: sampleHome(t), Passphrase: "right", WorkFactor: testWorkFactor}).Collect(dest)
	require.NoError(t, err)

	target := t.TempDir()
	_, err = (&Installer{Home: target, Passphrase: "wrong"}).Install(dest)
	assert.ErrorIs(t, err, ErrBadKey)

	entries, err := os.ReadDir(target)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInstall_PlainKeepsModes(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "sensitive")
	_, err := (&Collector{Home: sampleHome(t)}).Collect(dest)
	require.NoError(t, err)

	target := t.TempDir()
	res, err := (&Installer{Home: target}).Install(dest)
	require.NoError(t, err)
	assert.Empty(t, res.Backups)

	info, err := os.Stat(filepath.Join(target, ".ssh", "id_ed25519.pub"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	dir, err := os.Stat(filepath.Join(target, ".ssh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dir.Mode().Perm())
}

func TestInstall_RejectsEscapingPaths(t *testing.T) {
	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "evil"), "x", 0600)
	writeFile(t, filepath.Join(dest, ManifestFile),
		`{"encrypted":false,"files":[{"path":"../evil","stored":"evil","category":"env","mode":384}]}`, 0600)

	target := filepath.Join(t.TempDir(), "home")
	require.NoError(t, os.MkdirAll(target, 0700))

	res, err := (&Installer{Home: target}).Install(dest)
	require.NoError(t, err)
	assert.Empty(t, res.Installed)
	assert.Contains(t, res.Failed, "../evil")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(target), "evil"))
}

func TestInstall_MissingManifest(t *testing.T) {
	_, err := (&Installer{Home: t.TempDir()}).Install(t.TempDir())
	assert.Error(t, err)
}

func TestEncryptDecrypt(t *testing.T) {
	ciphertext, err := Encrypt([]byte("secret"), "pw", testWorkFactor)
	require.NoError(t, err)

	plaintext, err := Decrypt(ciphertext, "pw")
	require.NoError(t, err)
	assert.Equal(t, "secret", string(plaintext))

	_, err = Decrypt(ciphertext, "nope")
	assert.Error(t, err)
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, ".ssh__id_rsa", flatten(".ssh/id_rsa"))
	assert.Equal(t, ".gnupg__private-keys-v1.d__abc.key", flatten(".gnupg/private-keys-v1.d/abc.key"))
	assert.Equal(t, ".npmrc", flatten(".npmrc"))
}
