// Package bootstrap installs Homebrew into a user-owned prefix, the setup
// used by `macsnap install --profile` on machines without admin rights.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/macsnap/internal/archive"
)

// TarballURL is the Homebrew source tarball unpacked into the prefix.
const TarballURL = "https://github.com/Homebrew/brew/tarball/master"

// SystemInstallHint is the command for a regular, admin-owned install.
const SystemInstallHint = `/bin/bash -c "$(curl -fsSL https://raw.githubusercontent.com/Homebrew/install/HEAD/install.sh)"`

// PrefixDirs are created below the prefix so brew can link into them.
var PrefixDirs = []string{"bin", "etc", "include", "lib", "opt", "sbin", "share", "var", "Cellar", "Caskroom"}

const downloadTimeout = 10 * time.Minute

// Profile installs Homebrew below Prefix.
type Profile struct {
	Prefix string
	// URL defaults to TarballURL.
	URL    string
	Client *http.Client
	Log    zerolog.Logger
	// Stage, when set, is told which step is starting.
	Stage func(step string)
}

// Brew is the brew binary inside the prefix.
func (p *Profile) Brew() string {
	return filepath.Join(p.Prefix, "bin", "brew")
}

// Install downloads the tarball, unpacks it into the prefix and creates the
// directories brew expects. An existing brew binary is left alone.
func (p *Profile) Install(ctx context.Context) error {
	if _, err := os.Stat(p.Brew()); err == nil {
		p.Log.Info().Str("prefix", p.Prefix).Msg("Homebrew already present")
		return nil
	}
	if err := os.MkdirAll(p.Prefix, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", p.Prefix, err)
	}

	url := p.URL
	if url == "" {
		url = TarballURL
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: downloadTimeout}
	}

	start := time.Now()
	p.stage("Downloading Homebrew")
	if err := p.fetch(ctx, client, url); err != nil {
		return err
	}

	p.stage("Creating prefix directories")
	for _, dir := range PrefixDirs {
		if err := os.MkdirAll(filepath.Join(p.Prefix, dir), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if _, err := os.Stat(p.Brew()); err != nil {
		return fmt.Errorf("tarball from %s has no bin/brew: %w", url, err)
	}

	p.Log.Info().Str("prefix", p.Prefix).Str("url", url).Dur("duration", time.Since(start)).Msg("Homebrew installed")
	return nil
}

func (p *Profile) stage(step string) {
	if p.Stage != nil {
		p.Stage(step)
	}
	p.Log.Debug().Str("step", step).Msg("Bootstrap step")
}

// fetch streams the gzipped tarball straight into the prefix, dropping the
// top-level "Homebrew-brew-<sha>" directory.
func (p *Profile) fetch(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to GET %s: %w", url, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			p.Log.Warn().Err(cerr).Msg("Failed to close response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to GET %s: %s", url, resp.Status)
	}

	if err := archive.Extract(resp.Body, archive.FormatTarGzip, p.Prefix, 1); err != nil {
		return fmt.Errorf("failed to unpack Homebrew: %w", err)
	}
	return nil
}
