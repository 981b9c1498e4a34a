// Package sensitive collects credential files (ssh keys, cloud and registry
// tokens) into an archive, optionally encrypted with an age passphrase, and
// restores them with their original permissions.
package sensitive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"filippo.io/age"

	"github.com/blackwell-systems/macsnap/internal/shell"
)

// ManifestFile is the manifest name inside the sensitive directory.
const ManifestFile = "manifest.json"

// encryptedSuffix marks age ciphertext in the archive.
const encryptedSuffix = ".age"

var (
	// ErrKeyRequired is returned when encrypted files are restored without a passphrase.
	ErrKeyRequired = errors.New("sensitive files are encrypted; a decryption key is required")
	// ErrBadKey is returned when the passphrase does not decrypt the files.
	ErrBadKey = errors.New("decryption key does not match")
)

// Pattern is a home-relative glob of credential files.
type Pattern struct {
	Glob     string
	Category string
}

// Patterns lists the credential files that are collected.
var Patterns = []Pattern{
	{".ssh/id_*", "ssh"},
	{".ssh/config", "ssh"},
	{".ssh/known_hosts", "ssh"},
	{".ssh/authorized_keys", "ssh"},
	{".aws/credentials", "aws"},
	{".aws/config", "aws"},
	{".npmrc", "npm"},
	{".git-credentials", "git"},
	{".netrc", "git"},
	{".gnupg/pubring.kbx", "gpg"},
	{".gnupg/trustdb.gpg", "gpg"},
	{".gnupg/private-keys-v1.d/*", "gpg"},
	{".kube/config", "kubernetes"},
	{".docker/config.json", "docker"},
	{".gcloud/*", "gcloud"},
	{".azure/*", "azure"},
	{".bundle/config", "ruby"},
	{".cargo/credentials", "rust"},
	{".gradle/gradle.properties", "gradle"},
	{".m2/settings.xml", "maven"},
	{".env", "env"},
	{".env.local", "env"},
	{".envrc", "env"},
}

// Entry is one collected file.
type Entry struct {
	// Path is relative to the home directory.
	Path     string `json:"path"`
	Stored   string `json:"stored"`
	Category string `json:"category"`
	Mode     uint32 `json:"mode"`
	Size     int64  `json:"size"`
}

// Manifest describes the sensitive directory of an archive.
type Manifest struct {
	CreatedAt time.Time `json:"createdAt"`
	Encrypted bool      `json:"encrypted"`
	Files     []Entry   `json:"files"`
}

// Summary counts entries per category.
func (m *Manifest) Summary() map[string]int {
	counts := make(map[string]int)
	for _, e := range m.Files {
		counts[e.Category]++
	}
	return counts
}

// Categories returns the categories present, sorted.
func (m *Manifest) Categories() []string {
	counts := m.Summary()
	cats := make([]string, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// flatten turns a home-relative path into a single archive file name.
func flatten(rel string) string {
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", "__")
}

// Collector gathers credential files from a home directory.
type Collector struct {
	Home string
	// Passphrase encrypts every file with age when set.
	Passphrase string
	// WorkFactor is the scrypt log2 cost. Zero uses age's default.
	WorkFactor int
}

// Collect copies every file matching Patterns into dest and writes the
// manifest. It returns the manifest even when no files were found.
func (c *Collector) Collect(dest string) (*Manifest, error) {
	m := &Manifest{CreatedAt: time.Now().UTC(), Encrypted: c.Passphrase != "", Files: []Entry{}}
	if err := os.MkdirAll(dest, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	seen := make(map[string]bool)
	for _, p := range Patterns {
		matches, err := filepath.Glob(filepath.Join(c.Home, p.Glob))
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", p.Glob, err)
		}
		sort.Strings(matches)
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			rel, err := filepath.Rel(c.Home, path)
			if err != nil || seen[rel] {
				continue
			}
			seen[rel] = true

			entry := Entry{
				Path:     filepath.ToSlash(rel),
				Stored:   flatten(rel),
				Category: p.Category,
				Mode:     uint32(info.Mode().Perm()),
				Size:     info.Size(),
			}
			if m.Encrypted {
				entry.Stored += encryptedSuffix
			}
			if err := c.store(path, filepath.Join(dest, entry.Stored)); err != nil {
				return nil, fmt.Errorf("failed to collect %s: %w", rel, err)
			}
			m.Files = append(m.Files, entry)
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dest, ManifestFile), data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	return m, nil
}

func (c *Collector) store(src, dst string) error {
	plaintext, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if c.Passphrase == "" {
		return os.WriteFile(dst, plaintext, 0600)
	}
	ciphertext, err := Encrypt(plaintext, c.Passphrase, c.WorkFactor)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, ciphertext, 0600)
}

// Encrypt seals plaintext with an age scrypt passphrase.
func Encrypt(plaintext []byte, passphrase string, workFactor int) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if workFactor > 0 {
		recipient.SetWorkFactor(workFactor)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return buf.Bytes(), nil
}

// Decrypt opens age ciphertext sealed with passphrase.
func Decrypt(ciphertext []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return plaintext, nil
}

// ReadManifest loads the manifest of a sensitive directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read sensitive manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse sensitive manifest: %w", err)
	}
	return &m, nil
}

// InstallResult describes what Install did.
type InstallResult struct {
	Installed []string
	Backups   map[string]string
	Failed    map[string]error
}

// Installer restores credential files into a home directory.
type Installer struct {
	Home       string
	Passphrase string
	// Now stamps backup names. Defaults to time.Now.
	Now func() time.Time
}

// Install restores every manifest entry found in src. Existing files are
// backed up first. Encrypted archives need the passphrase; a wrong one is
// reported as ErrBadKey before anything is written.
func (in *Installer) Install(src string) (*InstallResult, error) {
	m, err := ReadManifest(src)
	if err != nil {
		return nil, err
	}
	if m.Encrypted && in.Passphrase == "" {
		return nil, ErrKeyRequired
	}
	now := in.Now
	if now == nil {
		now = time.Now
	}

	if m.Encrypted && len(m.Files) > 0 {
		first, err := os.ReadFile(filepath.Join(src, filepath.Base(m.Files[0].Stored)))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", m.Files[0].Stored, err)
		}
		if _, err := Decrypt(first, in.Passphrase); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
		}
	}

	res := &InstallResult{Backups: make(map[string]string), Failed: make(map[string]error)}
	for _, e := range m.Files {
		target, err := in.target(e.Path)
		if err != nil {
			res.Failed[e.Path] = err
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, filepath.Base(e.Stored)))
		if err != nil {
			res.Failed[e.Path] = err
			continue
		}
		if m.Encrypted {
			if data, err = Decrypt(data, in.Passphrase); err != nil {
				res.Failed[e.Path] = err
				continue
			}
		}

		backup, err := shell.BackupFile(target, now())
		if err != nil {
			res.Failed[e.Path] = err
			continue
		}
		if backup != "" {
			res.Backups[target] = backup
		}

		if err := writePrivate(target, data, os.FileMode(e.Mode).Perm()); err != nil {
			res.Failed[e.Path] = err
			continue
		}
		res.Installed = append(res.Installed, target)
	}
	return res, nil
}

// target resolves a manifest path under the home directory.
func (in *Installer) target(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("manifest path %q escapes the home directory", rel)
	}
	return filepath.Join(in.Home, clean), nil
}

// writePrivate writes data with perm, creating parents readable only by the owner.
func writePrivate(path string, data []byte, perm os.FileMode) error {
	if perm == 0 {
		perm = 0600
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}
