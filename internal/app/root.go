package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbosity  int
	logFile    string
	dbPath     string

	// RootCmd is the root command for macsnap
	RootCmd = &cobra.Command{
		Use:   "macsnap",
		Short: "Snapshot a Mac's setup and replay it on another machine",
		Long: `macsnap records the Homebrew taps, formulae and casks of this machine
together with shell configuration files (and, optionally, credential files)
into a single archive, and replays that archive onto a new Mac.

Installs are resumable: progress is saved after every package, failures never
stop the run, and renamed packages can be corrected interactively.

Examples:
  # Snapshot this machine
  macsnap collect -o macsnap.tar.zst

  # Include ssh keys and cloud credentials, encrypted with a passphrase
  macsnap collect --sensitive --encrypt-key "$PASSPHRASE"

  # Replay a snapshot on a new machine
  macsnap install macsnap.tar.zst

  # Continue an interrupted install
  macsnap install macsnap.tar.zst --resume

  # Install into ~/homebrew without admin rights
  macsnap install macsnap.tar.zst --profile`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "macsnap: snapshot and replay a Mac setup")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Run 'macsnap collect' on the old machine, then 'macsnap install <archive>' on the new one.")
			fmt.Fprintln(out, "Run 'macsnap --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/macsnap/config.yaml)")
	RootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug, -vvv trace)")
	RootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "run log path (default: $XDG_STATE_HOME/macsnap/install.log)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "install history database (default: $XDG_STATE_HOME/macsnap/history.db)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
