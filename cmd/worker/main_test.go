package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"pdfchat-backend/internal/ingestion"
	"pdfchat-backend/internal/queue"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeIngester struct {
	res   ingestion.Result
	err   error
	calls int
}

func (f *fakeIngester) Ingest(ctx context.Context, ev ingestion.Event) (ingestion.Result, error) {
	f.calls++
	return f.res, f.err
}

func validBody(t *testing.T) string {
	t.Helper()
	body, err := queue.EncodeMessage(queue.Message{
		OwnerID:    "user-1",
		StorageKey: "uploads/user-1/a.pdf",
		FileName:   "a.pdf",
		SourceURL:  "file://uploads/user-1/a.pdf",
		Tier:       "Free",
		RequestID:  "req-1",
		Version:    queue.MessageVersion,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(body)
}

func sqsMessage(id, body string) sqstypes.Message {
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	ing := &fakeIngester{res: ingestion.Result{DocumentID: "doc-1"}}

	handleMessage(context.Background(), client, "queue", ing, sqsMessage("m1", validBody(t)))

	if ing.calls != 1 {
		t.Fatalf("expected one ingestion, got %d", ing.calls)
	}
	if len(client.deleted) != 1 || client.deleted[0] != "r-m1" {
		t.Fatalf("expected delete of r-m1, got %v", client.deleted)
	}
}

func TestWorkerKeepsMessageWhenNoDocumentCreated(t *testing.T) {
	client := &fakeSQS{}
	ing := &fakeIngester{err: errors.New("database unavailable")}

	handleMessage(context.Background(), client, "queue", ing, sqsMessage("m2", validBody(t)))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %v", client.deleted)
	}
}

func TestWorkerDeletesFailedDocument(t *testing.T) {
	client := &fakeSQS{}
	ing := &fakeIngester{res: ingestion.Result{DocumentID: "doc-3"}, err: errors.New("embedding failed")}

	handleMessage(context.Background(), client, "queue", ing, sqsMessage("m3", validBody(t)))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %v", client.deleted)
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	ing := &fakeIngester{}

	handleMessage(context.Background(), client, "queue", ing, sqsMessage("m4", "{bad-json"))

	if ing.calls != 0 {
		t.Fatalf("ingester should not run for undecodable body")
	}
	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %v", client.deleted)
	}
}

func TestWorkerDeletesOnEmptyBody(t *testing.T) {
	client := &fakeSQS{}

	handleMessage(context.Background(), client, "queue", &fakeIngester{}, sqsMessage("m5", "  "))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %v", client.deleted)
	}
}

func TestReceiveCount(t *testing.T) {
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	msg := sqstypes.Message{Attributes: map[string]string{"ApproximateReceiveCount": "3"}}
	if got := receiveCount(msg); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}
