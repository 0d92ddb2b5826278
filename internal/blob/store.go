package blob

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"chatsync/internal/models"
)

// Store is the blob store contract consumed by the send path. Upload
// streams the reader to the destination path and returns a retrievable URL.
// onProgress, when non-nil, is invoked zero or more times with monotonically
// non-decreasing percentages in [0,100]; completion is signaled by Upload
// returning, not by the progress value reaching 100.
type Store interface {
	Upload(ctx context.Context, path string, r io.Reader, size int64, onProgress func(pct float64)) (string, error)
}

// UploadError wraps the transport cause of a failed upload. Any upload
// failure means "attachment not sent": the caller must not append a message
// referencing the destination.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Classify maps a declared MIME type onto the wire attachment kind: image
// prefixes render inline, PDFs render as documents, anything else is
// transmitted as a plain URL.
func Classify(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.FileTypeImage
	case contentType == "application/pdf":
		return models.FileTypeDocument
	default:
		return ""
	}
}

// ObjectPath builds a destination path namespaced by the owning
// conversation or group and prefixed with a millisecond timestamp. The
// timestamp is the sole collision-avoidance mechanism; there is no
// existence check and no retry with a new name.
func ObjectPath(namespace, filename string) string {
	return fmt.Sprintf("%s/%d_%s", namespace, time.Now().UnixMilli(), sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "file"
	}
	return name
}
