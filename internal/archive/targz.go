// Package archive reads and extracts the gzip-compressed tarballs that
// packages are uploaded as.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

type Reader struct {
	z *gzip.Reader
	r *tar.Reader
}

func New(r io.Reader) (*Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &Reader{z: gz, r: tar.NewReader(gz)}, nil
}

func (r *Reader) Read(p []byte) (int, error) { return r.r.Read(p) }
func (r *Reader) Close() error               { return r.z.Close() }
func (r *Reader) Next() (*tar.Header, error) { return r.r.Next() }

// List enumerates member names. Upload validation uses this to establish
// that the archive opens as a gzip-tar before anything is written.
func List(r io.Reader) ([]string, error) {
	t, err := New(r)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	var names []string
	for {
		header, err := t.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, header.Name)
	}
	return names, nil
}

// Extract unpacks the archive under dir. Member paths escaping dir are
// rejected.
func Extract(r io.Reader, dir string) error {
	t, err := New(r)
	if err != nil {
		return err
	}
	defer t.Close()

	for {
		header, err := t.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(dir, filepath.Clean(header.Name))
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) && target != filepath.Clean(dir) {
			return fmt.Errorf("archive member %q escapes extraction dir", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(header.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, t); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		default:
			// symlinks, devices and the rest have no business in a source tarball
		}
	}
}
