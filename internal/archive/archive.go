// Package archive reads and writes snapshot archives.
//
// An archive is a tree with a fixed layout:
//
//	snapshot.json
//	apps.json
//	shell/<dotfile>
//	sensitive/manifest.json
//	sensitive/<flattened path>.age
//
// It is written as a zstd (or lz4, or gzip) compressed tarball. Reading also
// accepts .tar.xz, .7z and a plain directory.
package archive

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Layout entries.
const (
	SnapshotFile = "snapshot.json"
	AppsFile     = "apps.json"
	ShellDir     = "shell"
	SensitiveDir = "sensitive"
)

// ErrUnsupported is returned for archive formats that cannot be read or written.
var ErrUnsupported = errors.New("unsupported archive format")

// Format is an archive container/compression combination.
type Format int

const (
	FormatUnknown Format = iota
	FormatDir
	FormatTar
	FormatTarZstd
	FormatTarLZ4
	FormatTarGzip
	FormatTarXZ
	Format7z
)

func (f Format) String() string {
	switch f {
	case FormatDir:
		return "directory"
	case FormatTar:
		return "tar"
	case FormatTarZstd:
		return "tar.zst"
	case FormatTarLZ4:
		return "tar.lz4"
	case FormatTarGzip:
		return "tar.gz"
	case FormatTarXZ:
		return "tar.xz"
	case Format7z:
		return "7z"
	default:
		return "unknown"
	}
}

// suffixes maps file name endings to formats; longer endings come first.
var suffixes = []struct {
	suffix string
	format Format
}{
	{".tar.zst", FormatTarZstd},
	{".tzst", FormatTarZstd},
	{".tar.lz4", FormatTarLZ4},
	{".tar.gz", FormatTarGzip},
	{".tgz", FormatTarGzip},
	{".tar.xz", FormatTarXZ},
	{".txz", FormatTarXZ},
	{".7z", Format7z},
	{".tar", FormatTar},
}

// DetectFormat infers the format of a file from its name.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.format
		}
	}
	return FormatUnknown
}

// DefaultName returns the default archive file name for a machine.
func DefaultName(hostname string) string {
	if hostname == "" {
		hostname = "mac"
	}
	return fmt.Sprintf("macsnap-%s.tar.zst", hostname)
}

// safeJoin resolves name below dest, rejecting absolute names and names
// that escape dest.
func safeJoin(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the destination", name)
	}
	target := filepath.Join(dest, clean)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the destination", name)
	}
	return target, nil
}
