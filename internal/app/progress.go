package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/macsnap/internal/config"
	"github.com/blackwell-systems/macsnap/internal/ledger"
	"github.com/blackwell-systems/macsnap/internal/output"
	"github.com/blackwell-systems/macsnap/internal/watcher"
)

var (
	progressFile   string
	progressFollow bool
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show the saved install progress",
	Long: `Prints what the saved progress file records: completed and failed taps,
formulae and casks, and the package renames you accepted.

With --follow the summary is printed again every time a running install
saves its progress. Press Ctrl-C to stop.`,
	Args: cobra.NoArgs,
	RunE: runProgress,
}

func init() {
	progressCmd.Flags().StringVar(&progressFile, "file", "", "progress file (default: $XDG_STATE_HOME/macsnap/progress.json)")
	progressCmd.Flags().BoolVarP(&progressFollow, "follow", "f", false, "keep printing as the file changes")

	RootCmd.AddCommand(progressCmd)
}

func runProgress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Install.ProgressFile
	if progressFile != "" {
		path = config.ExpandHome(progressFile)
	}
	out := cmd.OutOrStdout()

	if !progressFollow {
		l, err := ledger.Read(path)
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(out, "No install progress saved at %s\n", path)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Progress file: %s\n", path)
		fmt.Fprint(out, output.RenderLedger(l))
		return nil
	}

	if err := ledger.EnsureDir(path); err != nil {
		return err
	}
	console := output.NewConsole(out)
	logger := setupLogging(cfg, console)
	defer logger.Close()

	var mu sync.Mutex
	w, err := watcher.New(path, func(l *ledger.Ledger) {
		mu.Lock()
		defer mu.Unlock()
		printFollowUpdate(out, l)
	})
	if err != nil {
		return err
	}
	w.Log = logger.Component("watcher")

	fmt.Fprintf(out, "Following %s (Ctrl-C to stop)\n", w.Path())
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()
	<-ctx.Done()
	return nil
}

func printFollowUpdate(out io.Writer, l *ledger.Ledger) {
	fmt.Fprintf(out, "\n── %s ──\n", time.Now().Format(time.Kitchen))
	fmt.Fprint(out, output.RenderLedger(l))
}
