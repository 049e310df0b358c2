package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/go-classroom-api/internal/domain"
	"github.com/go-classroom-api/internal/pkg/id"
)

// LocalStore keeps attachments on the local filesystem. Relocation is a single
// os.Rename, which is atomic when the temp dir and upload dir share a volume.
type LocalStore struct {
	dir      string
	maxBytes int64
	logger   *zap.Logger
}

func NewLocalStore(dir string, maxBytes int64, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, maxBytes: maxBytes, logger: logger}, nil
}

func (s *LocalStore) Relocate(_ context.Context, up Upload) (*domain.Attachment, error) {
	if up.Size > s.maxBytes {
		s.discardTemp(up.TempPath)
		return nil, fmt.Errorf("attachment is %d bytes, limit %d: %w", up.Size, s.maxBytes, domain.ErrPayloadTooLarge)
	}

	// ULID prefix disambiguates concurrent uploads sharing an original name.
	storedName := fmt.Sprintf("%s_%s", id.New(), sanitizeFilename(up.OriginalName))
	dest := filepath.Join(s.dir, storedName)

	if err := os.Rename(up.TempPath, dest); err != nil {
		s.discardTemp(up.TempPath)
		return nil, fmt.Errorf("relocate %s: %v: %w", up.OriginalName, err, domain.ErrStorage)
	}

	contentType := up.ContentType
	if contentType == "" {
		if mt, err := mimetype.DetectFile(dest); err == nil {
			contentType = mt.String()
		} else {
			contentType = "application/octet-stream"
		}
	}

	return &domain.Attachment{
		Filename: storedName,
		Path:     dest,
		MimeType: contentType,
		Size:     up.Size,
	}, nil
}

func (s *LocalStore) Open(_ context.Context, storedName string) (string, error) {
	p := filepath.Join(s.dir, sanitizeFilename(storedName))
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("attachment %s: %w", storedName, domain.ErrNotFound)
	}
	return p, nil
}

// discardTemp removes the rejected temp upload. A leftover temp file is not
// fatal, but it must never disappear silently.
func (s *LocalStore) discardTemp(tempPath string) {
	if tempPath == "" {
		return
	}
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("temp upload left behind", zap.String("path", tempPath), zap.Error(err))
	}
}
