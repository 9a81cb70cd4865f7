// Package workerproc decodes queued ingestion requests and runs them. It is
// shared by the long-poll worker and the Lambda SQS handler.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"pdfchat-backend/internal/ingestion"
	"pdfchat-backend/internal/queue"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrInvalidEvent indicates a decoded message that is not a usable event.
type ErrInvalidEvent struct {
	Meta      MessageMeta
	RequestID string
	Err       error
}

func (e ErrInvalidEvent) Error() string { return "invalid ingestion event: " + e.Err.Error() }

func (e ErrInvalidEvent) Unwrap() error { return e.Err }

// ErrProcess indicates ingestion failed after the message was accepted. The
// document is already FAILED; the message must not be retried.
type ErrProcess struct {
	DocumentID string
	RequestID  string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process ingestion"
	}
	return "process ingestion: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (ingestion.Event, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return ingestion.Event{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return ingestion.Event{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	ev := ingestion.EventFromMessage(msg)
	if err := ev.Validate(); err != nil {
		return ev, meta, ErrInvalidEvent{Meta: meta, RequestID: msg.RequestID, Err: err}
	}
	return ev, meta, nil
}

// HandleEvent runs ingestion for a decoded event.
func HandleEvent(ctx context.Context, ingester ingestion.Ingester, ev ingestion.Event) (ingestion.Result, error) {
	if ingester == nil {
		return ingestion.Result{}, errors.New("ingestion pipeline not configured")
	}
	res, err := ingester.Ingest(ctx, ev)
	if err != nil {
		return res, ErrProcess{DocumentID: res.DocumentID, RequestID: ev.RequestID, Err: err}
	}
	return res, nil
}

// HandleMessage parses body and runs ingestion.
func HandleMessage(ctx context.Context, ingester ingestion.Ingester, body string) (ingestion.Result, error) {
	ev, _, err := ParseMessage(body)
	if err != nil {
		return ingestion.Result{}, err
	}
	return HandleEvent(ctx, ingester, ev)
}

// Unrecoverable reports whether a message should be deleted instead of
// redelivered. Once a document record exists its failure is terminal; errors
// before that point are left for redelivery.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		invalid ErrInvalidEvent
		process ErrProcess
	)
	switch {
	case errors.As(err, &empty), errors.As(err, &decode), errors.As(err, &invalid):
		return true
	case errors.As(err, &process):
		return process.DocumentID != ""
	}
	return false
}
