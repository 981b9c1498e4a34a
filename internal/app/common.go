package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/macsnap/internal/apps"
	"github.com/blackwell-systems/macsnap/internal/config"
	"github.com/blackwell-systems/macsnap/internal/logging"
	"github.com/blackwell-systems/macsnap/internal/output"
)

// loadConfig reads the effective configuration and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logFile != "" {
		cfg.Log.File = config.ExpandHome(logFile)
	}
	if dbPath != "" {
		cfg.History.DB = config.ExpandHome(dbPath)
	}
	return cfg, nil
}

// setupLogging opens the run log. A log file that cannot be opened is
// reported and the command continues with console logging only.
func setupLogging(cfg *config.Config, console *output.Console) *logging.Logger {
	logger, err := logging.Setup(logging.Options{
		Verbosity: verbosity,
		File:      cfg.Log.File,
		Console:   os.Stderr,
		NoColor:   color.NoColor,
	})
	if err != nil {
		console.Warn("run log disabled: %v", err)
	}
	return logger
}

// commandContext returns the command's context, or Background when the
// command was invoked directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// homeDir returns the current user's home directory.
func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return home, nil
}

// hostname returns a short host name for default archive names.
func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "mac"
	}
	return strings.TrimSuffix(name, ".local")
}

// brewBinary returns the brew executable below prefix, or "brew" to resolve
// it from PATH when prefix is empty.
func brewBinary(prefix string) string {
	if prefix == "" {
		return "brew"
	}
	return filepath.Join(prefix, "bin", "brew")
}

// masBinary prefers a mas installed in the brew prefix and otherwise
// resolves it from PATH.
func masBinary(prefix string) string {
	if prefix != "" {
		path := filepath.Join(prefix, "bin", "mas")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return "mas"
}

// caskrooms lists the Caskroom of prefix before the standard ones.
func caskrooms(prefix string) []string {
	if prefix == "" {
		return apps.DefaultCaskrooms
	}
	return append([]string{filepath.Join(prefix, "Caskroom")}, apps.DefaultCaskrooms...)
}

// appDirs are the directories scanned for applications.
var appDirs = apps.DefaultDirs
