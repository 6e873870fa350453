package domain

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Document is a study file selected for upload. Content is held in memory so an
// upload can be replayed byte for byte.
type Document struct {
	Name        string
	ContentType string
	Content     []byte
}

// NewDocument builds a Document. The content type is sniffed from the bytes;
// the file extension only decides when sniffing finds nothing specific.
func NewDocument(name string, content []byte) Document {
	sniffed := mimetype.Detect(content)
	ct := sniffed.String()
	if sniffed.Is("application/octet-stream") {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
			ct = byExt
		}
	}
	return Document{Name: filepath.Base(name), ContentType: ct, Content: content}
}

// Size returns the content length in bytes.
func (d Document) Size() int64 {
	return int64(len(d.Content))
}

// Validate checks local preconditions for an upload.
func (d Document) Validate(maxBytes int64) error {
	if d.Name == "" {
		return fmt.Errorf("no file selected")
	}
	if len(d.Content) == 0 {
		return fmt.Errorf("file %s is empty", d.Name)
	}
	if maxBytes > 0 && d.Size() > maxBytes {
		return fmt.Errorf("file %s is %d bytes, limit is %d", d.Name, d.Size(), maxBytes)
	}
	return nil
}
