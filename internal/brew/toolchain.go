package brew

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Toolchain is the developer toolchain brew depends on (the Xcode Command
// Line Tools on macOS).
type Toolchain interface {
	Installed(ctx context.Context) bool
	TriggerInstall(ctx context.Context) error
}

// XcodeToolchain checks and installs the Command Line Tools via xcode-select.
type XcodeToolchain struct{}

// Installed reports whether `xcode-select -p` points at an existing developer dir.
func (XcodeToolchain) Installed(ctx context.Context) bool {
	out, err := exec.CommandContext(ctx, "xcode-select", "-p").Output()
	return err == nil && strings.TrimSpace(string(out)) != ""
}

// TriggerInstall opens the system installer dialog for the Command Line Tools.
// It returns once the dialog is launched, not when installation finishes.
func (XcodeToolchain) TriggerInstall(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, "xcode-select", "--install").CombinedOutput()
	if err != nil {
		// already installed is reported as an error by xcode-select
		if strings.Contains(string(out), "already installed") {
			return nil
		}
		return fmt.Errorf("xcode-select --install failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}
