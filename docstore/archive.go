package docstore

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"sigillo.dev/sigillo/model"
)

// OpenInfo describes the stream returned by Open.
type OpenInfo struct {
	// Name is the suggested download file name.
	Name string
	// Archive is true when the stream is a zip of a directory subtree.
	Archive bool
	// Size is the stream length in bytes.
	Size int64
}

// Open returns a stream for the path: raw bytes for a file, a zip archive
// preserving the relative structure for a directory.
func (s *Store) Open(namespace, relPath string) (io.ReadCloser, *OpenInfo, error) {
	p, err := s.resolve(namespace, relPath)
	if err != nil {
		return nil, nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, nil, model.Errorf(model.ErrNotFound, "no such path %q", relPath)
	}

	if !info.IsDir() {
		f, err := os.Open(p)
		if err != nil {
			return nil, nil, err
		}
		return f, &OpenInfo{Name: info.Name(), Size: info.Size()}, nil
	}

	buf, err := zipDirectory(p)
	if err != nil {
		return nil, nil, err
	}
	return io.NopCloser(bytes.NewReader(buf)), &OpenInfo{
		Name:    info.Name() + ".zip",
		Archive: true,
		Size:    int64(len(buf)),
	}, nil
}

// zipDirectory packs the subtree at dir into an in-memory zip. Entry names
// are relative to dir's parent, so the archive unpacks into a folder named
// after the directory itself.
func zipDirectory(dir string) ([]byte, error) {
	parent := filepath.Dir(dir)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(parent, p)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		return err
	})
	if err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
