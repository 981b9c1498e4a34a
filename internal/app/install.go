package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/macsnap/internal/apps"
	"github.com/blackwell-systems/macsnap/internal/archive"
	"github.com/blackwell-systems/macsnap/internal/bootstrap"
	"github.com/blackwell-systems/macsnap/internal/brew"
	"github.com/blackwell-systems/macsnap/internal/config"
	"github.com/blackwell-systems/macsnap/internal/installer"
	"github.com/blackwell-systems/macsnap/internal/ledger"
	"github.com/blackwell-systems/macsnap/internal/logging"
	"github.com/blackwell-systems/macsnap/internal/output"
	"github.com/blackwell-systems/macsnap/internal/prompt"
	"github.com/blackwell-systems/macsnap/internal/sensitive"
	"github.com/blackwell-systems/macsnap/internal/shell"
	"github.com/blackwell-systems/macsnap/internal/snapshots"
	"github.com/blackwell-systems/macsnap/internal/store"
)

var (
	installProfile       bool
	installBrewPrefix    string
	installDecryptKey    string
	installSkipSensitive bool
	installSkipShell     bool
	installResume        bool
	installProgressFile  string
	installTimeout       int
	installPauseOnError  bool
	installYes           bool
	installNoHistory     bool
	installSkipApps      bool
)

// brewTarballURL is where profile mode downloads Homebrew from.
var brewTarballURL = bootstrap.TarballURL

var installCmd = &cobra.Command{
	Use:   "install <archive>",
	Short: "Replay a snapshot onto this machine",
	Long: `Installs everything recorded in a snapshot archive: Homebrew taps, then
formulae, then casks, then App Store apps (through mas), then shell
configuration files, then credential files. Applications that were
downloaded by hand are listed so they can be fetched again.

Failed packages never stop the run. Progress is saved after every package, so
an interrupted install continues where it left off with --resume. When brew
reports a package as missing or renamed, macsnap offers a replacement and
remembers your answer.

Existing configuration and credential files are backed up as
<file>.backup.<timestamp> before they are replaced.

Examples:
  macsnap install old-mac.tar.zst
  macsnap install old-mac.tar.zst --resume
  macsnap install old-mac.tar.zst --profile --brew-prefix ~/homebrew
  macsnap install old-mac.tar.zst --decrypt-key "$PASSPHRASE"`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installProfile, "profile", false, "install Homebrew packages into a user-writable prefix (casks are skipped)")
	installCmd.Flags().StringVar(&installBrewPrefix, "brew-prefix", "", "Homebrew prefix (default in profile mode: ~/homebrew)")
	installCmd.Flags().StringVar(&installDecryptKey, "decrypt-key", "", "passphrase for encrypted credential files")
	installCmd.Flags().BoolVar(&installSkipSensitive, "skip-sensitive", false, "do not install credential files")
	installCmd.Flags().BoolVar(&installSkipShell, "skip-shell", false, "do not install shell configuration files")
	installCmd.Flags().BoolVar(&installResume, "resume", false, "continue from the saved progress file")
	installCmd.Flags().StringVar(&installProgressFile, "progress-file", "", "progress file (default: $XDG_STATE_HOME/macsnap/progress.json)")
	installCmd.Flags().IntVar(&installTimeout, "timeout", 0, "seconds allowed for each package install (default: 300)")
	installCmd.Flags().BoolVar(&installPauseOnError, "pause-on-error", true, "ask whether to continue after each failed package")
	installCmd.Flags().BoolVarP(&installYes, "yes", "y", false, "answer every question with its default")
	installCmd.Flags().BoolVar(&installNoHistory, "no-history", false, "do not record this run in the install history")
	installCmd.Flags().BoolVar(&installSkipApps, "skip-apps", false, "do not install App Store apps")

	RootCmd.AddCommand(installCmd)
}

// installSettings are the effective install settings after config and flags.
type installSettings struct {
	options    installer.Options
	brewPrefix string
}

// resolveInstallSettings merges the config with the flags the operator set.
func resolveInstallSettings(cmd *cobra.Command, cfg *config.Config, source, home string) installSettings {
	opts := installer.DefaultOptions()
	opts.Source = source
	opts.Resume = installResume
	opts.UseProfile = installProfile
	opts.AppDir = cfg.Install.AppDir
	opts.ProgressFile = cfg.Install.ProgressFile
	opts.PauseOnError = cfg.Install.PauseOnError
	if cfg.Install.Timeout > 0 {
		opts.Timeout = cfg.Install.Timeout
	}
	if len(cfg.Install.PriorityFormulae) > 0 {
		opts.Priority = cfg.Install.PriorityFormulae
	}

	if installProgressFile != "" {
		opts.ProgressFile = config.ExpandHome(installProgressFile)
	}
	if installTimeout > 0 {
		opts.Timeout = time.Duration(installTimeout) * time.Second
	}
	if cmd.Flags().Changed("pause-on-error") {
		opts.PauseOnError = installPauseOnError
	}

	prefix := cfg.Install.BrewPrefix
	if installBrewPrefix != "" {
		prefix = config.ExpandHome(installBrewPrefix)
	}
	if prefix == "" && installProfile {
		prefix = filepath.Join(home, "homebrew")
	}
	return installSettings{options: opts, brewPrefix: prefix}
}

func runInstall(cmd *cobra.Command, args []string) error {
	console := output.NewConsole(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg, console)
	defer logger.Close()
	log := logger.Component("install")
	logging.LogCommand(log, cmd.CommandPath(), args)
	defer logging.LogDuration(log, time.Now(), "install")

	home, err := homeDir()
	if err != nil {
		return err
	}

	src, err := archive.Open(args[0])
	if err != nil {
		console.Error("Cannot open %s: %v", args[0], err)
		return err
	}
	defer src.Close()
	log.Info().Str("archive", args[0]).Str("format", src.Format.String()).Msg("Archive opened")

	settings := resolveInstallSettings(cmd, cfg, args[0], home)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	if src.Has(archive.SnapshotFile) {
		snap, err := snapshots.Load(src.Path(archive.SnapshotFile))
		if err != nil {
			console.Error("Cannot read the package list: %v", err)
			return err
		}

		port := installPort()
		err = installPackages(ctx, cmd, cfg, settings, snap, port, console, logger)
		if errors.Is(err, installer.ErrBrewMissing) && settings.options.UseProfile {
			if bootstrapBrew(ctx, cmd, settings.brewPrefix, port, console, logger.Component("bootstrap")) {
				err = installPackages(ctx, cmd, cfg, settings, snap, port, console, logger)
			}
		}
		switch {
		case errors.Is(err, installer.ErrCancelled), errors.Is(err, installer.ErrInterrupted):
			return err
		case errors.Is(err, installer.ErrBrewMissing):
			console.Error("Homebrew is not installed at %s", brewBinary(settings.brewPrefix))
			if settings.options.UseProfile {
				console.Hint("run again with --resume once %s/bin/brew exists", settings.brewPrefix)
			} else {
				console.Hint("install it with: %s", bootstrap.SystemInstallHint)
				console.Hint("then run again with --resume")
			}
		case err != nil:
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("install interrupted: %w", ctx.Err())
		}
	} else {
		console.Warn("The archive has no package list; skipping Homebrew")
	}

	if settings.options.UseProfile {
		changed, err := shell.EnsureBrewEnv(home, settings.brewPrefix)
		if err != nil {
			console.Warn("Could not add Homebrew to your shell profile: %v", err)
		}
		for _, f := range changed {
			console.Info("Added Homebrew environment to %s", f)
		}
	}

	if !installSkipApps && src.Has(archive.AppsFile) {
		if err := installApps(ctx, src.Path(archive.AppsFile), settings.brewPrefix, console, logger.Component("apps")); err != nil {
			return err
		}
	}

	if !installSkipShell && src.Has(archive.ShellDir) {
		installShell(src, home, console, log)
	}

	if !installSkipSensitive && src.Has(archive.SensitiveDir) {
		installSensitive(src, home, console, log)
	}

	console.Section("Done")
	console.Info("Open a new terminal to pick up the restored configuration")
	return nil
}

// installApps reinstalls the App Store apps of the inventory with mas and
// lists the ones that need a manual download. Only an interrupt is returned.
func installApps(ctx context.Context, path, brewPrefix string, console *output.Console, log zerolog.Logger) error {
	console.Section("Applications")
	inv, err := apps.Load(path)
	if err != nil {
		console.Warn("Cannot read the application list: %v", err)
		return nil
	}

	runner := brew.NewRunner(masBinary(brewPrefix), log)
	runner.Out = nil
	in := &apps.Installer{
		Runner:  runner,
		Log:     log,
		Started: func(a apps.StoreApp) { console.Info("Installing %s", a.Name) },
	}

	var rep *apps.Report
	if err := in.Check(ctx); err != nil {
		console.Warn("Mac App Store CLI (mas) not found; App Store apps skipped")
		console.Hint("install it with: brew install mas, then run again")
		log.Warn().Err(err).Msg("mas unavailable")
		rep = &apps.Report{NoID: inv.StoreApps, Manual: inv.Manual()}
	} else {
		if len(inv.StoreApps) > 0 {
			console.Faint("You must be signed in to the App Store for mas to install apps")
		}
		rep, err = in.Install(ctx, inv)
		if err != nil {
			return err
		}
	}

	for _, a := range rep.Installed {
		console.Success("%s", a.Name)
	}
	for _, f := range rep.Failed {
		console.Failure("%s: %s", f.App.Name, f.Message)
	}
	if len(rep.NoID) > 0 {
		console.Warn("Install from the App Store:")
		for _, a := range rep.NoID {
			console.Faint("  %s", a.Name)
		}
	}
	if len(rep.Manual) > 0 {
		console.Warn("Download manually:")
		for _, a := range rep.Manual {
			version := a.Version
			if version == "" {
				version = "N/A"
			}
			console.Faint("  %s (%s)", a.Name, version)
		}
	}
	return nil
}

// installPort answers installer questions on the terminal, or with their
// defaults under --yes or without a terminal.
func installPort() prompt.Port {
	port := prompt.Stdio()
	port.AssumeDefault = installYes || !prompt.Interactive()
	return port
}

// bootstrapBrew offers to download Homebrew into the profile prefix and
// reports whether it is usable afterwards.
func bootstrapBrew(ctx context.Context, cmd *cobra.Command, prefix string, port prompt.Port, console *output.Console, log zerolog.Logger) bool {
	ok, err := port.Confirm(fmt.Sprintf("Homebrew is not installed. Download it into %s (no admin rights needed)?", prefix), true)
	if err != nil || !ok {
		log.Info().Err(err).Msg("Homebrew download declined")
		return false
	}

	console.Section("Homebrew")
	spinner := output.NewSpinner("Preparing " + prefix)
	spinner.SetWriter(cmd.ErrOrStderr())
	spinner.WithTimeout(0).Start()
	p := &bootstrap.Profile{Prefix: prefix, URL: brewTarballURL, Log: log, Stage: spinner.UpdateMessage}
	if err := p.Install(ctx); err != nil {
		spinner.Stop()
		console.Error("Could not install Homebrew: %v", err)
		log.Error().Err(err).Str("prefix", prefix).Msg("Homebrew bootstrap failed")
		return false
	}
	spinner.StopWithMessage("Homebrew unpacked into " + prefix)
	return true
}

// installPackages runs the Homebrew phase and prints its summary.
func installPackages(ctx context.Context, cmd *cobra.Command, cfg *config.Config, settings installSettings, snap *snapshots.Snapshot, port prompt.Port, console *output.Console, logger *logging.Logger) error {
	opts := settings.options

	l, err := installer.OpenLedger(opts)
	if err != nil {
		return err
	}
	seedRenames(l, logger.Component("renames"))

	runner := brew.NewRunner(brewBinary(settings.brewPrefix), logger.Component("brew"))
	runner.ProfileMode = opts.UseProfile
	runner.Out = cmd.OutOrStdout()

	inst := installer.New(runner, port, l, opts)
	inst.Console = console
	inst.Log = logger.Component("installer")

	if cfg.History.Enabled && !installNoHistory {
		st, err := store.Open(cfg.History.DB)
		if err != nil {
			console.Warn("Install history disabled: %v", err)
		} else {
			defer st.Close()
			inst.Recorder = st
		}
	}

	report, err := inst.Run(ctx, snap)
	if report != nil && !errors.Is(err, installer.ErrBrewMissing) {
		report.Render(console)
		if opts.ProgressFile != "" {
			console.Faint("Progress saved to %s", opts.ProgressFile)
		}
	}
	return err
}

// seedRenames adds the operator's known renames to the ledger so those
// items install under their new name without a prompt.
func seedRenames(l *ledger.Ledger, logger zerolog.Logger) {
	renames, err := config.LoadRenames(config.Dir())
	if err != nil {
		logger.Warn().Err(err).Msg("Known renames not loaded")
		return
	}
	for original, replacement := range renames.Names {
		if l.Resolve(original) == original {
			l.RecordRename(original, replacement)
		}
	}
}

func installShell(src *archive.Extracted, home string, console *output.Console, log zerolog.Logger) {
	console.Section("Shell configuration")
	res, err := (&shell.Installer{Home: home}).Install(src.Path(archive.ShellDir))
	if err != nil {
		console.Error("%v", err)
		log.Error().Err(err).Msg("shell configs not installed")
		return
	}
	reportFiles(console, res.Installed, res.Backups, res.Failed)
	log.Info().Int("installed", len(res.Installed)).Int("failed", len(res.Failed)).Msg("Shell configs installed")
}

func installSensitive(src *archive.Extracted, home string, console *output.Console, log zerolog.Logger) {
	console.Section("Sensitive files")
	dir := src.Path(archive.SensitiveDir)
	passphrase := installDecryptKey
	if passphrase == "" && !installYes && prompt.Interactive() {
		if m, err := sensitive.ReadManifest(dir); err == nil && m.Encrypted {
			if key, err := prompt.ReadSecret(console.Writer(), "Passphrase for credential files"); err == nil {
				passphrase = key
			}
		}
	}

	in := &sensitive.Installer{Home: home, Passphrase: passphrase}
	res, err := in.Install(dir)
	switch {
	case errors.Is(err, sensitive.ErrKeyRequired):
		console.Error("Credential files are encrypted; skipping them")
		console.Hint("run again with --decrypt-key to restore them")
		return
	case errors.Is(err, sensitive.ErrBadKey):
		console.Error("The decryption key is wrong; skipping credential files")
		return
	case err != nil:
		console.Error("%v", err)
		log.Error().Err(err).Msg("sensitive files not installed")
		return
	}
	reportFiles(console, res.Installed, res.Backups, res.Failed)
	log.Info().Int("installed", len(res.Installed)).Int("failed", len(res.Failed)).Msg("Sensitive files installed")
}

// reportFiles prints the outcome of a file install section.
func reportFiles(console *output.Console, installed []string, backups map[string]string, failed map[string]error) {
	for _, path := range installed {
		if backup, ok := backups[path]; ok {
			console.Success("%s (previous version saved as %s)", path, filepath.Base(backup))
		} else {
			console.Success("%s", path)
		}
	}

	names := make([]string, 0, len(failed))
	for name := range failed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		console.Failure("%s: %v", name, failed[name])
	}
	if len(installed) == 0 && len(failed) == 0 {
		console.Faint("  nothing to install")
	}
}
