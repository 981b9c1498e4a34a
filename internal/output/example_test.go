package output_test

import (
	"fmt"
	"time"

	"github.com/blackwell-systems/macsnap/internal/output"
	"github.com/blackwell-systems/macsnap/internal/store"
)

// Example showing how to render recorded install runs
func ExampleRenderRunTable() {
	started := time.Now().Add(-2 * time.Hour)
	finished := started.Add(14 * time.Minute)
	runs := []*store.Run{
		{
			ID:         1,
			StartedAt:  started,
			FinishedAt: finished,
			Source:     "snapshot.json",
			Status:     store.RunCompleted,
			Succeeded:  42,
			Failed:     2,
		},
	}

	fmt.Println(output.RenderRunTable(runs))
}

// Example showing how to use a progress bar
func ExampleProgressBar() {
	progress := output.NewProgress(3, "Writing archive")

	for _, name := range []string{"snapshot.json", "shell/.zshrc", "shell/.gitconfig"} {
		progress.Step(name)
	}

	progress.Finish()
}

// Example showing how to use a spinner with a per-item timeout
func ExampleSpinner() {
	spinner := output.NewSpinner("Installing ripgrep").WithTimeout(5 * time.Minute)
	spinner.Start()

	// brew install runs here

	spinner.StopWithMessage("✓ ripgrep")
}

func ExampleFormatDuration() {
	fmt.Println(output.FormatDuration(1500 * time.Millisecond))
	fmt.Println(output.FormatDuration(135 * time.Second))
	// Output:
	// 1s
	// 2m15s
}
