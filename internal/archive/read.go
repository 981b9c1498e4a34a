package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/xi2/xz"
)

// Extracted is an opened archive: a directory holding its contents.
type Extracted struct {
	// Dir is the root of the archive tree.
	Dir string
	// Format is what the archive was read as.
	Format Format

	temp bool
}

// Path returns the absolute path of an entry in the archive layout.
func (e *Extracted) Path(elem ...string) string {
	return filepath.Join(append([]string{e.Dir}, elem...)...)
}

// Has reports whether the archive contains the entry.
func (e *Extracted) Has(elem ...string) bool {
	_, err := os.Stat(e.Path(elem...))
	return err == nil
}

// Close removes the temporary extraction directory. A directory archive is
// left untouched.
func (e *Extracted) Close() error {
	if !e.temp || e.Dir == "" {
		return nil
	}
	err := os.RemoveAll(e.Dir)
	e.Dir = ""
	return err
}

// Open makes the archive at path available as a directory. Directories are
// used in place; everything else is extracted into a temporary directory
// that Close removes.
func Open(path string) (*Extracted, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if info.IsDir() {
		return &Extracted{Dir: path, Format: FormatDir}, nil
	}

	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}

	dest, err := os.MkdirTemp("", "macsnap-")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	e := &Extracted{Dir: dest, Format: format, temp: true}

	if format == Format7z {
		err = extract7z(path, dest)
	} else {
		err = extractTarFile(path, dest, format)
	}
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func extractTarFile(path, dest string, format Format) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	return Extract(f, format, dest, 0)
}

// Extract unpacks a tar stream compressed as format into dest, dropping the
// first strip components of every entry name (tar --strip-components).
// Entries with nothing left after stripping are ignored.
func Extract(r io.Reader, format Format, dest string, strip int) error {
	switch format {
	case FormatTarZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("failed to read zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	case FormatTarLZ4:
		r = lz4.NewReader(r)
	case FormatTarGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("failed to read gzip stream: %w", err)
		}
		defer gr.Close()
		r = gr
	case FormatTarXZ:
		xr, err := xz.NewReader(r, 0)
		if err != nil {
			return fmt.Errorf("failed to read xz stream: %w", err)
		}
		r = xr
	case FormatTar:
	default:
		return fmt.Errorf("%w for streaming: %s", ErrUnsupported, format)
	}
	return extractTar(r, dest, strip)
}

// extractTar unpacks directories, regular files and symlinks that stay
// inside dest. Hard links and device entries are skipped.
func extractTar(r io.Reader, dest string, strip int) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}

		name := stripComponents(hdr.Name, strip)
		if name == "" {
			continue
		}
		target, err := safeJoin(dest, name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", name, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return fmt.Errorf("failed to extract %s: %w", name, err)
			}
		case tar.TypeSymlink:
			if err := writeSymlink(dest, name, target, hdr.Linkname); err != nil {
				return err
			}
		}
	}
}

// stripComponents drops the first n slash-separated elements of name.
func stripComponents(name string, n int) string {
	name = strings.TrimPrefix(name, "./")
	for i := 0; i < n; i++ {
		idx := strings.IndexByte(name, '/')
		if idx < 0 {
			return ""
		}
		name = name[idx+1:]
	}
	return strings.TrimSuffix(name, "/")
}

// writeSymlink creates target -> link after checking that link, resolved from
// the entry's directory, stays below dest.
func writeSymlink(dest, name, target, link string) error {
	if filepath.IsAbs(link) {
		return fmt.Errorf("archive entry %q links outside the destination", name)
	}
	resolved := filepath.Join(filepath.Dir(filepath.FromSlash(name)), filepath.FromSlash(link))
	if _, err := safeJoin(dest, filepath.ToSlash(resolved)); err != nil {
		return fmt.Errorf("archive entry %q links outside the destination", name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	os.Remove(target)
	if err := os.Symlink(link, target); err != nil {
		return fmt.Errorf("failed to link %s: %w", name, err)
	}
	return nil
}

func extract7z(path, dest string) error {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", f.Name, err)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		err = writeFile(target, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
