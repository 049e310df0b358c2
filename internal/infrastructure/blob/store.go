package blob

import (
	"context"
	"path"
	"strings"

	"github.com/go-classroom-api/internal/domain"
)

// Upload describes a received temporary file awaiting relocation into
// permanent storage.
type Upload struct {
	TempPath     string
	OriginalName string
	ContentType  string // as declared by the client; sniffed when empty
	Size         int64
}

// Store relocates uploaded temp files into permanent attachment storage.
// Implementations must guarantee that two concurrent uploads with the same
// original name never collide, and must not leave a half-moved file behind
// on failure.
type Store interface {
	Relocate(ctx context.Context, up Upload) (*domain.Attachment, error)
	// Open resolves a stored attachment name to its permanent location.
	Open(ctx context.Context, storedName string) (string, error)
}

// sanitizeFilename strips directory components and keeps only safe characters
// (alphanumeric, dot, dash, underscore) to prevent path traversal in storage keys.
func sanitizeFilename(name string) string {
	name = path.Base(name) // drop any leading path components / traversal sequences
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." {
		return result
	}
	return "_"
}
