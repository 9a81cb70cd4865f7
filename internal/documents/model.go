package documents

import (
	"errors"
	"fmt"
	"time"

	"pdfchat-backend/internal/shared/apperr"
)

// UploadStatus is the ingestion state of a document.
type UploadStatus string

const (
	StatusProcessing UploadStatus = "PROCESSING"
	StatusSuccess    UploadStatus = "SUCCESS"
	StatusFailed     UploadStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed.
func (s UploadStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s UploadStatus) Valid() bool {
	return s == StatusProcessing || s.IsTerminal()
}

var (
	// ErrNotFound wraps apperr.ErrNotFound so handlers map it to 404.
	ErrNotFound = fmt.Errorf("document %w", apperr.ErrNotFound)
	// ErrInvalidTransition is returned when a status write would leave a
	// terminal state or target PROCESSING.
	ErrInvalidTransition = errors.New("invalid upload status transition")
)

// Document is an uploaded PDF owned by one user. Passages exist in the vector
// index for it only while UploadStatus is SUCCESS.
type Document struct {
	ID            string
	OwnerID       string
	StorageKey    string
	SourceURL     string
	Name          string
	UploadStatus  UploadStatus
	PageCount     int
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CheckTransition validates a status change. Only PROCESSING may move, and
// only to a terminal state.
func CheckTransition(from, to UploadStatus) error {
	if from != StatusProcessing || !to.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
