package bootstrap

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brewTarball mimics the GitHub tarball: one top-level directory holding bin/brew.
func brewTarball(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	script := []byte("#!/bin/sh\necho \"Homebrew 4.3.1\"\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "Homebrew-brew-1a2b3c/", Typeflag: tar.TypeDir, Mode: 0755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "Homebrew-brew-1a2b3c/bin/brew", Typeflag: tar.TypeReg, Mode: 0755, Size: int64(len(script))}))
	_, err := tw.Write(script)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func serve(t *testing.T, status int, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProfileInstall(t *testing.T) {
	srv := serve(t, http.StatusOK, brewTarball(t))
	var steps []string
	p := &Profile{
		Prefix: filepath.Join(t.TempDir(), "homebrew"),
		URL:    srv.URL,
		Log:    zerolog.Nop(),
		Stage:  func(step string) { steps = append(steps, step) },
	}

	require.NoError(t, p.Install(context.Background()))
	assert.Equal(t, []string{"Downloading Homebrew", "Creating prefix directories"}, steps)

	info, err := os.Stat(p.Brew())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	for _, dir := range PrefixDirs {
		assert.DirExists(t, filepath.Join(p.Prefix, dir))
	}
	assert.NoDirExists(t, filepath.Join(p.Prefix, "Homebrew-brew-1a2b3c"))
}

func TestProfileInstall_ExistingBrewIsKept(t *testing.T) {
	prefix := t.TempDir()
	brew := filepath.Join(prefix, "bin", "brew")
	require.NoError(t, os.MkdirAll(filepath.Dir(brew), 0755))
	require.NoError(t, os.WriteFile(brew, []byte("mine"), 0755))

	p := &Profile{Prefix: prefix, URL: "http://127.0.0.1:1/unreachable", Log: zerolog.Nop()}
	require.NoError(t, p.Install(context.Background()))

	data, err := os.ReadFile(brew)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))
}

func TestProfileInstall_HTTPError(t *testing.T) {
	srv := serve(t, http.StatusNotFound, nil)
	p := &Profile{Prefix: t.TempDir(), URL: srv.URL, Log: zerolog.Nop()}

	err := p.Install(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.NoFileExists(t, p.Brew())
}

func TestProfileInstall_TarballWithoutBrew(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "top/README.md", Typeflag: tar.TypeReg, Mode: 0644}))
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	srv := serve(t, http.StatusOK, buf.Bytes())
	p := &Profile{Prefix: t.TempDir(), URL: srv.URL, Log: zerolog.Nop()}

	err := p.Install(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bin/brew")
}

func TestProfileInstall_Cancelled(t *testing.T) {
	srv := serve(t, http.StatusOK, brewTarball(t))
	p := &Profile{Prefix: t.TempDir(), URL: srv.URL, Log: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, p.Install(ctx))
}
