package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/macsnap/internal/apps"
	"github.com/blackwell-systems/macsnap/internal/archive"
	"github.com/blackwell-systems/macsnap/internal/logging"
	"github.com/blackwell-systems/macsnap/internal/output"
	"github.com/blackwell-systems/macsnap/internal/prompt"
	"github.com/blackwell-systems/macsnap/internal/sensitive"
	"github.com/blackwell-systems/macsnap/internal/shell"
	"github.com/blackwell-systems/macsnap/internal/snapshots"
)

var (
	collectOutput      string
	collectSensitive   bool
	collectEncryptKey  string
	collectIncludeDeps bool
	collectSkipBrew    bool
	collectSkipShell   bool
	collectSkipApps    bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Snapshot this machine into an archive",
	Long: `Scans the installed Homebrew taps, formulae and casks, lists the
installed applications and copies shell configuration files into a single
archive (.tar.zst by default).

With --sensitive, ssh keys, cloud credentials and registry tokens are added
too. Use --encrypt-key to encrypt them with a passphrase; without it they are
stored in the clear.

Examples:
  macsnap collect
  macsnap collect -o ~/Desktop/old-mac.tar.zst
  macsnap collect --sensitive --encrypt-key "$PASSPHRASE"
  macsnap collect --sensitive --encrypt-key -`,
	Args: cobra.NoArgs,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().StringVarP(&collectOutput, "output", "o", "", "archive to write (default: macsnap-<host>.tar.zst)")
	collectCmd.Flags().BoolVar(&collectSensitive, "sensitive", false, "include credential files (ssh, aws, npm, ...)")
	collectCmd.Flags().StringVar(&collectEncryptKey, "encrypt-key", "", "passphrase used to encrypt credential files (\"-\" to type it)")
	collectCmd.Flags().BoolVar(&collectIncludeDeps, "include-deps", false, "also record formulae installed only as dependencies")
	collectCmd.Flags().BoolVar(&collectSkipBrew, "skip-brew", false, "do not scan Homebrew")
	collectCmd.Flags().BoolVar(&collectSkipShell, "skip-shell", false, "do not collect shell configuration files")
	collectCmd.Flags().BoolVar(&collectSkipApps, "skip-apps", false, "do not list installed applications")

	RootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	console := output.NewConsole(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg, console)
	defer logger.Close()
	log := logger.Component("collect")
	logging.LogCommand(log, cmd.CommandPath(), args)
	defer logging.LogDuration(log, time.Now(), "collect")

	home, err := homeDir()
	if err != nil {
		return err
	}

	out := collectOutput
	if out == "" {
		out = archive.DefaultName(hostname())
	}
	if archive.DetectFormat(out) == archive.Format7z {
		return fmt.Errorf("cannot write %s: %w (7z archives can only be read)", out, archive.ErrUnsupported)
	}

	work, err := os.MkdirTemp("", "macsnap-collect-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(work)

	var casks []string
	if !collectSkipBrew {
		console.Section("Homebrew")
		spinner := output.NewSpinner("Scanning installed packages")
		spinner.SetWriter(cmd.ErrOrStderr())
		spinner.WithTimeout(0).Start()
		snap, err := snapshots.Collect(commandContext(cmd), snapshots.CollectOptions{
			BrewPath:            brewBinary(cfg.Install.BrewPrefix),
			IncludeDependencies: collectIncludeDeps,
		})
		spinner.Stop()
		if err != nil {
			console.Warn("Homebrew not scanned: %v", err)
			log.Warn().Err(err).Msg("brew scan failed")
		} else {
			if err := snap.Write(filepath.Join(work, archive.SnapshotFile)); err != nil {
				return err
			}
			console.Success("%d taps, %d formulae, %d casks", len(snap.Taps), len(snap.Formulae), len(snap.Casks))
			log.Info().Str("brew", snap.BrewVersion).Int("items", snap.Len()).Msg("Homebrew scanned")
			for _, c := range snap.Casks {
				casks = append(casks, c.Name)
			}
		}
	}

	if !collectSkipApps {
		console.Section("Applications")
		if err := collectApps(cmd, cfg.Install.BrewPrefix, home, casks, filepath.Join(work, archive.AppsFile), console, logger.Component("apps")); err != nil {
			return err
		}
	}

	if !collectSkipShell {
		console.Section("Shell configuration")
		files, err := shell.Collect(home, filepath.Join(work, archive.ShellDir))
		if err != nil {
			return err
		}
		if len(files) == 0 {
			console.Faint("  no configuration files found")
		}
		for _, f := range files {
			console.Success("%s", f)
		}
	}

	if collectSensitive {
		console.Section("Sensitive files")
		if collectEncryptKey == "-" {
			key, err := prompt.NewSecret(console.Writer(), "Passphrase for credential files")
			if err != nil {
				return err
			}
			collectEncryptKey = key
		}
		if collectEncryptKey == "" {
			console.Warn("Credential files will be stored unencrypted")
			console.Hint("pass --encrypt-key to protect them with a passphrase")
		}
		collector := &sensitive.Collector{Home: home, Passphrase: collectEncryptKey}
		m, err := collector.Collect(filepath.Join(work, archive.SensitiveDir))
		if err != nil {
			return err
		}
		for _, cat := range m.Categories() {
			console.Success("%s: %d files", cat, m.Summary()[cat])
		}
		if len(m.Files) == 0 {
			console.Faint("  no credential files found")
		}
	} else if collectEncryptKey != "" {
		console.Warn("--encrypt-key has no effect without --sensitive")
	}

	total, err := archive.CountFiles(work)
	if err != nil {
		return err
	}
	bar := output.NewProgress(total, "Writing "+filepath.Base(out))
	bar.SetWriter(cmd.ErrOrStderr())
	n, err := archive.CreateWithProgress(work, out, bar.Step)
	if err != nil {
		return err
	}
	bar.SetDescription(fmt.Sprintf("Wrote %d files", n))
	bar.Finish()

	if info, err := os.Stat(out); err == nil {
		console.Info("Snapshot written to %s (%s)", out, output.FormatSize(info.Size()))
	} else {
		console.Info("Snapshot written to %s", out)
	}
	console.Hint("on the new machine: macsnap install %s", out)
	log.Info().Str("archive", out).Int("files", n).Msg("Snapshot written")
	return nil
}

// collectApps writes the application inventory to path. A failed scan is
// reported and skipped like a failed brew scan.
func collectApps(cmd *cobra.Command, brewPrefix, home string, casks []string, path string, console *output.Console, log zerolog.Logger) error {
	spinner := output.NewSpinner("Scanning applications")
	spinner.SetWriter(cmd.ErrOrStderr())
	spinner.WithTimeout(0).Start()
	inv, err := apps.Collect(commandContext(cmd), apps.CollectOptions{
		Dirs:      appDirs(home),
		MasPath:   masBinary(brewPrefix),
		Casks:     casks,
		Caskrooms: caskrooms(brewPrefix),
		Log:       log,
	})
	spinner.Stop()
	if err != nil {
		console.Warn("Applications not scanned: %v", err)
		log.Warn().Err(err).Msg("application scan failed")
		return nil
	}
	if err := inv.Write(path); err != nil {
		return err
	}

	byMethod := inv.ByMethod()
	console.Success("%d applications: %d App Store, %d cask, %d direct download",
		len(inv.Apps), byMethod[apps.MethodStore], byMethod[apps.MethodCask], byMethod[apps.MethodDirect])
	if !inv.MasListed {
		console.Hint("install mas (brew install mas) to record App Store ids")
	}
	return nil
}
