package models

// Wire values for the fileType field, kept compatible with the original
// backend schema: "image", "pdf", or empty for unclassified.
const (
	FileTypeImage    = "image"
	FileTypeDocument = "pdf"
)

// Attachment is a closed variant over the attachment kinds a message can
// carry. Switching on the concrete type makes kind dispatch exhaustive
// instead of inspecting a loose string tag.
type Attachment interface {
	isAttachment()
}

// NoAttachment marks a text-only message.
type NoAttachment struct{}

// ImageAttachment points to an uploaded image rendered inline.
type ImageAttachment struct {
	URL string
}

// DocumentAttachment points to an uploaded PDF.
type DocumentAttachment struct {
	URL string
}

// UnclassifiedAttachment points to an upload of any other content type,
// transmitted as a plain URL with no specialized rendering.
type UnclassifiedAttachment struct {
	URL string
}

func (NoAttachment) isAttachment()           {}
func (ImageAttachment) isAttachment()        {}
func (DocumentAttachment) isAttachment()     {}
func (UnclassifiedAttachment) isAttachment() {}

func attachmentFromWire(fileURL, fileType string) Attachment {
	if fileURL == "" {
		return NoAttachment{}
	}
	switch fileType {
	case FileTypeImage:
		return ImageAttachment{URL: fileURL}
	case FileTypeDocument:
		return DocumentAttachment{URL: fileURL}
	default:
		return UnclassifiedAttachment{URL: fileURL}
	}
}
