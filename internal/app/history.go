package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/macsnap/internal/output"
	"github.com/blackwell-systems/macsnap/internal/store"
)

var (
	historyRunID int64
	historyLimit int
	historyItem  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past install runs",
	Long: `Lists the install runs recorded in the history database, newest first.
Use --run to see every package attempt of one run, including failures and
the names packages were installed under, or --item to see how one package
fared across all runs.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int64Var(&historyRunID, "run", 0, "show the attempts of one run")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	historyCmd.Flags().StringVar(&historyItem, "item", "", "show how often one package was attempted across all runs")

	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(cfg.History.DB); os.IsNotExist(err) {
		fmt.Fprintln(out, "No install history yet.")
		return nil
	}

	st, err := store.New(cfg.History.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	if historyItem != "" {
		total, failed, err := st.CountAttempts(historyItem)
		if errors.Is(err, store.ErrNotInitialized) {
			fmt.Fprintln(out, "No install history yet.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d attempts, %d failed\n", historyItem, total, failed)
		return nil
	}

	if historyRunID != 0 {
		run, err := st.GetRun(historyRunID)
		if err != nil {
			return err
		}
		attempts, err := st.ListAttempts(historyRunID)
		if err != nil {
			return err
		}
		fmt.Fprint(out, output.RenderRunTable([]*store.Run{run}))
		fmt.Fprintln(out)
		fmt.Fprint(out, output.RenderAttemptTable(attempts))
		return nil
	}

	runs, err := st.ListRuns(historyLimit)
	if errors.Is(err, store.ErrNotInitialized) {
		fmt.Fprintln(out, "No install history yet.")
		return nil
	}
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No install history yet.")
		return nil
	}
	fmt.Fprint(out, output.RenderRunTable(runs))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run 'macsnap history --run <ID>' for the packages of one run.")
	return nil
}
