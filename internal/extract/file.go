package extract

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
)

// File is a read-only handle on an uploaded file.
type File interface {
	io.ReaderAt
	Size() int64
	Name() string
}

// pather is implemented by files that already live on disk.
type pather interface {
	Path() string
}

// OSFile is a File backed by a file on disk.
type OSFile struct {
	f    *os.File
	size int64
	path string
}

// OpenFile opens path for extraction. The caller must Close it.
func OpenFile(path string) (*OSFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", common.ErrInvalidInput, path)
	}
	return &OSFile{f: f, size: st.Size(), path: path}, nil
}

func (o *OSFile) ReadAt(p []byte, off int64) (int, error) { return o.f.ReadAt(p, off) }
func (o *OSFile) Size() int64                              { return o.size }
func (o *OSFile) Name() string                             { return filepath.Base(o.path) }
func (o *OSFile) Path() string                             { return o.path }
func (o *OSFile) Close() error                             { return o.f.Close() }

// BytesFile is an in-memory File.
type BytesFile struct {
	*bytes.Reader
	name string
}

// NewBytesFile wraps data as a File.
func NewBytesFile(name string, data []byte) *BytesFile {
	return &BytesFile{Reader: bytes.NewReader(data), name: name}
}

func (b *BytesFile) Name() string { return b.name }

// readAll loads the whole file, refusing files above limit.
func readAll(f File, limit int64) ([]byte, error) {
	size := f.Size()
	if limit > 0 && size > limit {
		return nil, fmt.Errorf("%w: file is %d bytes, limit is %d", common.ErrInvalidInput, size, limit)
	}
	buf := make([]byte, size)
	n, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	return buf[:n], nil
}

// ContentHash returns the hex SHA-256 of the file contents.
func ContentHash(f File) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(f, 0, f.Size())); err != nil {
		return "", fmt.Errorf("hash %s: %w", f.Name(), err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// spool returns a filesystem path holding the file, copying it into tmpDir when the
// file is not already on disk. cleanup is always non-nil.
func spool(f File, tmpDir, pattern string) (path string, cleanup func(), err error) {
	cleanup = func() {}
	if p, ok := f.(pather); ok && p.Path() != "" {
		return p.Path(), cleanup, nil
	}
	path, err = CopyToTemp(f, tmpDir, pattern)
	if err != nil {
		return "", cleanup, err
	}
	return path, func() { _ = os.Remove(path) }, nil
}

// CopyToTemp writes the file's bytes to a new temporary file and returns its path.
// The caller owns the copy.
func CopyToTemp(f File, tmpDir, pattern string) (string, error) {
	tmp, err := os.CreateTemp(tmpDir, pattern)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, io.NewSectionReader(f, 0, f.Size())); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
