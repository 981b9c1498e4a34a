package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/macsnap/internal/brew"
	"github.com/blackwell-systems/macsnap/internal/config"
	"github.com/blackwell-systems/macsnap/internal/ledger"
	"github.com/blackwell-systems/macsnap/internal/store"
)

// doctorToolchain is replaced in tests.
var doctorToolchain brew.Toolchain = brew.XcodeToolchain{}

// doctorTimeout bounds each brew query.
const doctorTimeout = 30 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that this machine is ready for an install",
	Long: `Runs diagnostic checks before or after an install.

Checks:
  • Homebrew is installed and answers
  • Xcode Command Line Tools are installed
  • Config file parses
  • Saved progress, run log and install history are readable`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Running macsnap diagnostics...")
	fmt.Fprintln(out)

	criticalIssues := 0
	warningIssues := 0

	// Check 1: config
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(out, "✗ Config error:", err)
		fmt.Fprintln(out, "  Action: fix the file or run 'macsnap config init --force'")
		criticalIssues++
		cfg = config.Defaults()
	} else if configPath != "" {
		fmt.Fprintln(out, "✓ Config loaded:", configPath)
	} else if _, err := os.Stat(config.DefaultPath()); err == nil {
		fmt.Fprintln(out, "✓ Config loaded:", config.DefaultPath())
	} else {
		fmt.Fprintln(out, "✓ Using built-in defaults (no config file)")
	}

	ctx := commandContext(cmd)

	// Check 2: brew
	brewPath := brewBinary(cfg.Install.BrewPrefix)
	if version, prefix, err := checkBrew(ctx, brewPath); err != nil {
		fmt.Fprintln(out, "✗ Homebrew not found:", err)
		fmt.Fprintln(out, "  Action: install it from https://brew.sh")
		criticalIssues++
	} else {
		fmt.Fprintf(out, "✓ Homebrew %s (%s)\n", version, prefix)
	}

	// Check 3: toolchain, warning only
	if doctorToolchain.Installed(ctx) {
		fmt.Fprintln(out, "✓ Xcode Command Line Tools installed")
	} else {
		fmt.Fprintln(out, "⚠ Xcode Command Line Tools not installed")
		fmt.Fprintln(out, "  Action: run 'xcode-select --install'")
		warningIssues++
	}

	// Check 4: saved progress, warning only
	warningIssues += checkProgress(out, cfg.Install.ProgressFile)

	// Check 5: run log directory, warning only
	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0755); err != nil {
		fmt.Fprintln(out, "⚠ Run log directory not writable:", err)
		warningIssues++
	} else {
		fmt.Fprintln(out, "✓ Run log:", cfg.Log.File)
	}

	// Check 6: history, warning only
	warningIssues += checkHistory(out, cfg)

	fmt.Fprintln(out)
	if criticalIssues == 0 && warningIssues == 0 {
		fmt.Fprintln(out, "✓ All checks passed!")
		return nil
	}

	if criticalIssues > 0 {
		fmt.Fprintf(out, "Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
		return fmt.Errorf("diagnostics failed")
	}

	fmt.Fprintf(out, "Found %d warning(s). Installs will work but may be degraded.\n", warningIssues)
	return nil
}

func checkBrew(ctx context.Context, brewPath string) (version, prefix string, err error) {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	version, err = brew.Version(ctx, brewPath)
	if err != nil {
		return "", "", err
	}
	prefix, err = brew.Prefix(ctx, brewPath)
	if err != nil {
		return "", "", err
	}
	return version, prefix, nil
}

func checkProgress(out io.Writer, path string) int {
	l, err := ledger.Read(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintln(out, "✓ No saved install progress")
		return 0
	case err != nil:
		fmt.Fprintln(out, "⚠ Saved progress unreadable:", err)
		fmt.Fprintln(out, "  Action: delete it or start without --resume")
		return 1
	}

	failed := 0
	for _, kind := range brew.Kinds {
		failed += len(l.Failures(kind))
	}
	fmt.Fprintf(out, "✓ Saved progress: %s", path)
	if failed > 0 {
		fmt.Fprintf(out, " (%d failed items, see 'macsnap progress')", failed)
	}
	fmt.Fprintln(out)
	return 0
}

func checkHistory(out io.Writer, cfg *config.Config) int {
	if !cfg.History.Enabled {
		fmt.Fprintln(out, "✓ Install history disabled")
		return 0
	}
	if _, err := os.Stat(cfg.History.DB); os.IsNotExist(err) {
		fmt.Fprintln(out, "✓ No install history yet")
		return 0
	}
	st, err := store.Open(cfg.History.DB)
	if err != nil {
		fmt.Fprintln(out, "⚠ Install history unreadable:", err)
		return 1
	}
	defer st.Close()

	runs, err := st.ListRuns(0)
	if err != nil {
		fmt.Fprintln(out, "⚠ Install history unreadable:", err)
		return 1
	}
	fmt.Fprintf(out, "✓ Install history: %d runs\n", len(runs))
	return 0
}
