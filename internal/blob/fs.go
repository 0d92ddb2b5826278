package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const copyChunkSize = 32 * 1024

// FSStore is a filesystem-backed Store. Objects are written under a root
// directory and served at baseURL + "/" + path by the HTTP layer.
type FSStore struct {
	root    string
	baseURL string
}

// NewFSStore constructs an FSStore rooted at dir.
func NewFSStore(dir, baseURL string) *FSStore {
	return &FSStore{root: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Upload streams r to the destination path, reporting progress per chunk
// when the total size is known. A partial file is removed on failure.
func (s *FSStore) Upload(ctx context.Context, path string, r io.Reader, size int64, onProgress func(pct float64)) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", &UploadError{Path: path, Err: err}
	}

	f, err := os.Create(full)
	if err != nil {
		return "", &UploadError{Path: path, Err: err}
	}

	var written int64
	buf := make([]byte, copyChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return s.fail(f, full, path, err)
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return s.fail(f, full, path, writeErr)
			}
			written += int64(n)
			if onProgress != nil && size > 0 {
				pct := float64(written) / float64(size) * 100
				if pct > 100 {
					pct = 100
				}
				onProgress(pct)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return s.fail(f, full, path, readErr)
		}
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return "", &UploadError{Path: path, Err: err}
	}
	return fmt.Sprintf("%s/%s", s.baseURL, path), nil
}

func (s *FSStore) fail(f *os.File, full, path string, cause error) (string, error) {
	_ = f.Close()
	_ = os.Remove(full)
	return "", &UploadError{Path: path, Err: cause}
}
