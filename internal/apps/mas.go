package apps

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// masLine matches one `mas list` row: "497799835  Xcode  (15.4)".
var masLine = regexp.MustCompile(`^(\d+)\s+(.+?)\s+\(([^)]+)\)$`)

// ListStore runs `mas list`.
func ListStore(ctx context.Context, masPath string) ([]StoreApp, error) {
	cmd := exec.CommandContext(ctx, masPath, "list")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("mas list failed: %w (stderr: %s)", err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("mas list failed: %w", err)
	}
	return ParseMasList(string(output)), nil
}

// ParseMasList parses `mas list` output. Lines that do not look like an
// app row are ignored.
func ParseMasList(output string) []StoreApp {
	var apps []StoreApp
	for _, line := range strings.Split(output, "\n") {
		m := masLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		apps = append(apps, StoreApp{ID: m[1], Name: m[2], Version: m[3]})
	}
	return apps
}
