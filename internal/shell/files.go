package shell

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ConfigFiles lists the dotfiles collected from a home directory, relative
// to it.
var ConfigFiles = []string{
	".zshrc",
	".zprofile",
	".zshenv",
	".bashrc",
	".bash_profile",
	".profile",

	".gitconfig",
	".gitignore_global",
	".ssh/config",
	".tmux.conf",
	".vimrc",

	".aliases",
	".functions",
	".exports",
	".config/starship.toml",

	".tool-versions",
	".asdfrc",
	".cargo/config.toml",

	".editorconfig",
	".config/nvim/init.vim",
	".config/nvim/init.lua",
}

// Collect copies every existing file of ConfigFiles from home into dest,
// keeping relative paths. It returns the relative paths copied.
func Collect(home, dest string) ([]string, error) {
	var collected []string
	for _, rel := range ConfigFiles {
		src := filepath.Join(home, rel)
		info, err := os.Stat(src)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := CopyFile(src, filepath.Join(dest, rel), info.Mode().Perm()); err != nil {
			return collected, fmt.Errorf("failed to collect %s: %w", rel, err)
		}
		collected = append(collected, rel)
	}
	return collected, nil
}

// InstallResult describes what Install did.
type InstallResult struct {
	Installed []string
	// Backups maps each overwritten file to its backup copy.
	Backups map[string]string
	// Failed maps relative paths that could not be installed to the error.
	Failed map[string]error
}

// Installer copies collected config files into a home directory.
type Installer struct {
	Home string
	// Now stamps backup names. Defaults to time.Now.
	Now func() time.Time
}

// Install copies every file below src into the home directory at the same
// relative path. An existing file is first copied to
// "<path>.backup.<unix seconds>". A failing file is recorded and the rest
// are still installed.
func (in *Installer) Install(src string) (*InstallResult, error) {
	now := in.Now
	if now == nil {
		now = time.Now
	}
	res := &InstallResult{
		Backups: make(map[string]string),
		Failed:  make(map[string]error),
	}

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(in.Home, rel)

		if backup, err := BackupFile(target, now()); err != nil {
			res.Failed[rel] = err
			return nil
		} else if backup != "" {
			res.Backups[target] = backup
		}

		info, err := d.Info()
		if err != nil {
			res.Failed[rel] = err
			return nil
		}
		if err := CopyFile(path, target, info.Mode().Perm()); err != nil {
			res.Failed[rel] = err
			return nil
		}
		res.Installed = append(res.Installed, target)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("failed to read shell configs: %w", err)
	}
	return res, nil
}

// BackupFile copies path to path.backup.<unix> when it exists and returns
// the backup path, or "" when there was nothing to back up.
func BackupFile(path string, at time.Time) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	backup := fmt.Sprintf("%s.backup.%d", path, at.Unix())
	if err := CopyFile(path, backup, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", path, err)
	}
	return backup, nil
}

// CopyFile copies src to dst with perm, creating parent directories.
func CopyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	dirPerm := os.FileMode(0755)
	if filepath.Base(filepath.Dir(dst)) == ".ssh" {
		dirPerm = 0700
	}
	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile only applies perm to new files
	return os.Chmod(dst, perm)
}
