package brew

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// brewInfoOutput represents the structure of `brew info --json=v2 --installed` output
type brewInfoOutput struct {
	Formulae []brewFormulaInfo `json:"formulae"`
	Casks    []brewCaskInfo    `json:"casks"`
}

// brewFormulaInfo represents detailed formula information
type brewFormulaInfo struct {
	Name      string                 `json:"name"`
	FullName  string                 `json:"full_name"`
	Tap       string                 `json:"tap"`
	Desc      string                 `json:"desc"`
	Installed []brewInstalledVersion `json:"installed"`
}

// brewInstalledVersion represents an installed version
type brewInstalledVersion struct {
	Version            string `json:"version"`
	InstalledOnRequest bool   `json:"installed_on_request"`
}

// brewCaskInfo represents detailed cask information
type brewCaskInfo struct {
	Token   string   `json:"token"`
	Name    []string `json:"name"`
	Tap     string   `json:"tap"`
	Desc    string   `json:"desc"`
	Version string   `json:"version"`
}

// ListInstalled returns every installed formula and cask.
// When onlyRequested is set, formulae pulled in purely as dependencies are
// left out; the installer lets brew resolve those again.
func ListInstalled(ctx context.Context, brewPath string, onlyRequested bool) ([]*Package, error) {
	cmd := exec.CommandContext(ctx, brewPath, "info", "--json=v2", "--installed")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("brew info failed: %w (stderr: %s)", err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("brew info failed: %w", err)
	}
	return parseInstalled(output, onlyRequested)
}

func parseInstalled(data []byte, onlyRequested bool) ([]*Package, error) {
	var info brewInfoOutput
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse brew info output: %w", err)
	}

	packages := make([]*Package, 0, len(info.Formulae)+len(info.Casks))
	for _, f := range info.Formulae {
		pkg := &Package{
			Name: f.Name,
			Tap:  f.Tap,
			Desc: f.Desc,
		}
		requested := len(f.Installed) == 0
		if len(f.Installed) > 0 {
			pkg.Version = f.Installed[0].Version
			for _, v := range f.Installed {
				requested = requested || v.InstalledOnRequest
			}
		}
		if onlyRequested && !requested {
			continue
		}
		packages = append(packages, pkg)
	}
	for _, c := range info.Casks {
		pkg := &Package{
			Name:    c.Token,
			Tap:     c.Tap,
			Desc:    c.Desc,
			Version: c.Version,
			IsCask:  true,
		}
		if len(c.Name) > 0 {
			pkg.DisplayName = c.Name[0]
		}
		packages = append(packages, pkg)
	}
	return packages, nil
}

// Version returns the Homebrew version, e.g. "4.3.1".
func Version(ctx context.Context, brewPath string) (string, error) {
	cmd := exec.CommandContext(ctx, brewPath, "--version")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to execute brew --version: %w", err)
	}

	// Parse "Homebrew X.Y.Z" from first line
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	parts := strings.Fields(lines[0])
	if len(parts) < 2 {
		return "", fmt.Errorf("unexpected brew --version format: %s", lines[0])
	}
	return parts[1], nil
}

// Prefix returns the Homebrew installation prefix.
func Prefix(ctx context.Context, brewPath string) (string, error) {
	cmd := exec.CommandContext(ctx, brewPath, "--prefix")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("brew --prefix failed: %w (stderr: %s)", err, string(exitErr.Stderr))
		}
		return "", fmt.Errorf("brew --prefix failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}
