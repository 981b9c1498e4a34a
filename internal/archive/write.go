package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Create writes the tree rooted at srcDir to out. The format follows out's
// extension: .tar.zst (default for unknown names), .tar.lz4, .tar.gz or .tar.
// It returns the number of files written.
func Create(srcDir, out string) (int, error) {
	return CreateWithProgress(srcDir, out, nil)
}

// CreateWithProgress is Create with onFile called with the slash-separated
// name of each regular file once it is in the archive.
func CreateWithProgress(srcDir, out string, onFile func(name string)) (int, error) {
	format := DetectFormat(out)
	if format == FormatUnknown {
		format = FormatTarZstd
	}

	f, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}

	n, err := writeTo(f, srcDir, format, onFile)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close archive: %w", cerr)
	}
	if err != nil {
		os.Remove(out)
		return 0, err
	}
	return n, nil
}

func writeTo(w io.Writer, srcDir string, format Format, onFile func(string)) (int, error) {
	var (
		compressed io.WriteCloser
		err        error
	)
	switch format {
	case FormatTarZstd:
		compressed, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case FormatTarLZ4:
		compressed = lz4.NewWriter(w)
	case FormatTarGzip:
		compressed = gzip.NewWriter(w)
	case FormatTar:
		compressed = nopWriteCloser{w}
	default:
		return 0, fmt.Errorf("%w for writing: %s", ErrUnsupported, format)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to start %s stream: %w", format, err)
	}

	tw := tar.NewWriter(compressed)
	n, err := addTree(tw, srcDir, onFile)
	if err != nil {
		compressed.Close()
		return 0, err
	}
	if err := tw.Close(); err != nil {
		compressed.Close()
		return 0, fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := compressed.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish %s stream: %w", format, err)
	}
	return n, nil
}

// addTree writes every directory and regular file below root. Symlinks and
// special files are skipped.
func addTree(tw *tar.Writer, root string, onFile func(string)) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to describe %s: %w", rel, err)
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		hdr.Uname, hdr.Gname = "", ""
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to add %s: %w", rel, err)
		}
		if info.IsDir() {
			return nil
		}

		src, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", rel, err)
		}
		defer src.Close()
		if _, err := io.Copy(tw, src); err != nil {
			return fmt.Errorf("failed to add %s: %w", rel, err)
		}
		n++
		if onFile != nil {
			onFile(hdr.Name)
		}
		return nil
	})
	return n, err
}

// CountFiles returns the number of regular files below root, the total a
// CreateWithProgress callback will see.
func CountFiles(root string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return n, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
