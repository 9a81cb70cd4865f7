package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"pdfchat-backend/internal/bootstrap"
	"pdfchat-backend/internal/ingestion"
	"pdfchat-backend/internal/shared/config"
	"pdfchat-backend/internal/shared/metrics"
	"pdfchat-backend/internal/shared/telemetry"
	"pdfchat-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, app.Pipeline, event), nil
}

// processBatch reports only retryable records as failures. Records whose
// failure is terminal are acknowledged so they leave the queue.
func processBatch(ctx context.Context, ingester ingestion.Ingester, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncWorkerJobsReceived()
		res, err := workerproc.HandleMessage(ctx, ingester, record.Body)
		fields := map[string]any{"sqs_message_id": record.MessageId}
		if res.DocumentID != "" {
			fields["document_id"] = res.DocumentID
		}
		if err == nil {
			telemetry.Info("worker.ingestion.completed", fields)
			metrics.IncWorkerJobsCompleted()
			continue
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.ingestion.failed", fields)
		metrics.IncWorkerJobsFailed()
		if workerproc.Unrecoverable(err) {
			metrics.IncWorkerJobsDeletedUnrecoverable()
			continue
		}
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
