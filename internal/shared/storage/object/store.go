package object

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"pdfchat-backend/internal/shared/util"
)

// Object describes a stored upload.
type Object struct {
	Key         string
	SizeBytes   int64
	ContentType string
}

// ObjectStore defines the contract for saving and retrieving uploaded files.
type ObjectStore interface {
	Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (Object, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	// SourceURL returns a URL the ingestion fetcher can read the object from.
	SourceURL(ctx context.Context, storageKey string) (string, error)
}

// Presigner is implemented by stores that let clients upload directly.
type Presigner interface {
	PresignUpload(ctx context.Context, storageKey, contentType string, expires time.Duration) (string, error)
}

// NewKey builds the storage key for an upload: the hashed owner namespace
// followed by a random prefix and the sanitized file name.
func NewKey(ownerID, fileName string) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", fmt.Errorf("owner id is required")
	}
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join(util.HashUserKey(ownerID), util.RandomID()+"_"+sanitized), nil
}

// OwnedBy reports whether storageKey lives in ownerID's namespace.
func OwnedBy(storageKey, ownerID string) bool {
	if strings.TrimSpace(ownerID) == "" || strings.Contains(storageKey, "..") {
		return false
	}
	return strings.HasPrefix(storageKey, util.HashUserKey(ownerID)+"/")
}

// FileName recovers the original file name from a key built by NewKey.
func FileName(storageKey string) string {
	base := path.Base(storageKey)
	if i := strings.Index(base, "_"); i >= 0 && i < len(base)-1 {
		return base[i+1:]
	}
	return base
}
