package brew

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// InstallArgs builds the brew arguments that install one item of the given kind.
// appDir is only used for casks and may be empty.
func InstallArgs(kind Kind, name, appDir string) []string {
	switch kind {
	case KindTap:
		return []string{"tap", name}
	case KindCask:
		args := []string{"install", "--cask"}
		if appDir != "" {
			args = append(args, "--appdir="+appDir)
		}
		return append(args, name)
	default:
		return []string{"install", name}
	}
}

// SearchArgs builds the brew arguments for a name search scoped to kind.
func SearchArgs(kind Kind, name string) []string {
	if kind == KindCask {
		return []string{"search", "--cask", name}
	}
	return []string{"search", name}
}

// ListTaps returns the taps currently added.
func ListTaps(ctx context.Context, brewPath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, brewPath, "tap")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("brew tap failed: %w (stderr: %s)", err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("brew tap failed: %w", err)
	}
	return parseLines(string(output)), nil
}

// parseLines splits output into trimmed, non-empty lines.
func parseLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
