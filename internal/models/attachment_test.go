package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageAttachmentVariants(t *testing.T) {
	assert.Equal(t, NoAttachment{},
		Message{}.Attachment())

	// A kind without a URL still means no attachment.
	assert.Equal(t, NoAttachment{},
		Message{FileType: FileTypeImage}.Attachment())

	assert.Equal(t, ImageAttachment{URL: "http://files/a.png"},
		Message{FileURL: "http://files/a.png", FileType: FileTypeImage}.Attachment())

	assert.Equal(t, DocumentAttachment{URL: "http://files/a.pdf"},
		Message{FileURL: "http://files/a.pdf", FileType: FileTypeDocument}.Attachment())

	assert.Equal(t, UnclassifiedAttachment{URL: "http://files/a.bin"},
		Message{FileURL: "http://files/a.bin"}.Attachment())
}
