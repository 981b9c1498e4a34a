// Package shell collects shell and tool configuration files from a home
// directory and installs them on another machine.
package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// brewEnvMarker tags the block EnsureBrewEnv appends.
const brewEnvMarker = "# Homebrew (user prefix, added by macsnap)"

// ProfileFiles are the rc files that receive the Homebrew environment in
// profile mode.
var ProfileFiles = []string{".zshrc", ".bashrc", ".bash_profile"}

// EnsureBrewEnv appends a block exporting PATH and HOMEBREW_* for a
// user-prefix Homebrew to each profile file under home. Files that already
// set HOMEBREW_PREFIX are left alone. It returns the files it changed.
func EnsureBrewEnv(home, prefix string) ([]string, error) {
	if prefix == "" {
		return nil, fmt.Errorf("brew prefix cannot be empty")
	}

	block := fmt.Sprintf("\n%s\nexport PATH=%q:$PATH\nexport HOMEBREW_PREFIX=%q\nexport HOMEBREW_CELLAR=%q\nexport HOMEBREW_REPOSITORY=%q\n",
		brewEnvMarker,
		filepath.Join(prefix, "bin"),
		prefix,
		filepath.Join(prefix, "Cellar"),
		prefix,
	)

	var changed []string
	for _, name := range ProfileFiles {
		configPath := filepath.Join(home, name)

		existing, err := os.ReadFile(configPath)
		if err != nil && !os.IsNotExist(err) {
			return changed, fmt.Errorf("cannot read config file %s: %w", configPath, err)
		}
		if strings.Contains(string(existing), "HOMEBREW_PREFIX=") {
			continue
		}

		f, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return changed, fmt.Errorf("cannot open config file %s: %w", configPath, err)
		}
		_, werr := fmt.Fprint(f, block)
		cerr := f.Close()
		if werr != nil {
			return changed, fmt.Errorf("cannot write to config file %s: %w", configPath, werr)
		}
		if cerr != nil {
			return changed, fmt.Errorf("cannot write to config file %s: %w", configPath, cerr)
		}
		changed = append(changed, configPath)
	}
	return changed, nil
}
