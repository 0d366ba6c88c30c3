package domain

import (
	"mime"
	"strings"
)

const MimeTypePDF = "application/pdf"

type DocumentID string

type Document struct {
	ID       DocumentID `json:"id"`
	Name     string     `json:"name"`
	Size     int64      `json:"size"`
	MimeType string     `json:"mime_type"`
	SHA256   string     `json:"sha256"`
	Pages    int        `json:"pages,omitempty"`
	Content  []byte     `json:"-"`
}

// SameIdentity reports whether two documents are the same selection entry.
// Identity is the (name, size) pair; the generated ID and content hash are not considered.
func (d Document) SameIdentity(other Document) bool {
	return d.Name == other.Name && d.Size == other.Size
}

// IncomingFile is a candidate document before intake filtering.
type IncomingFile struct {
	Name     string
	MimeType string
	Content  []byte
}

func IsPDFMimeType(declared string) bool {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return false
	}
	return strings.EqualFold(mediaType, MimeTypePDF)
}
