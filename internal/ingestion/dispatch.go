package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pdfchat-backend/internal/queue"
	"pdfchat-backend/internal/shared/telemetry"
)

// Dispatcher hands an Event to whatever runs ingestion.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

// Ingester is the consumer side of a Dispatcher.
type Ingester interface {
	Ingest(ctx context.Context, ev Event) (Result, error)
}

// LocalDispatcher runs ingestion in a background goroutine of the current
// process. It is used in dev.
type LocalDispatcher struct {
	ingester Ingester
	wg       sync.WaitGroup
}

// NewLocalDispatcher constructs a LocalDispatcher.
func NewLocalDispatcher(ingester Ingester) *LocalDispatcher {
	return &LocalDispatcher{ingester: ingester}
}

// Dispatch validates ev and starts ingestion. The run is detached from ctx
// so it outlives the HTTP request that triggered it.
func (d *LocalDispatcher) Dispatch(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	runCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		res, err := d.ingester.Ingest(runCtx, ev)
		if err != nil {
			telemetry.Debug("ingestion.local.finished", map[string]any{"document_id": res.DocumentID, "error": err})
		}
	}()
	return nil
}

// Wait blocks until every dispatched run has returned.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}

// QueueDispatcher publishes events for a separate worker.
type QueueDispatcher struct {
	client queue.Client
	now    func() time.Time
}

// NewQueueDispatcher constructs a QueueDispatcher.
func NewQueueDispatcher(client queue.Client) *QueueDispatcher {
	return &QueueDispatcher{client: client, now: time.Now}
}

// Dispatch validates ev and sends it to the queue.
func (d *QueueDispatcher) Dispatch(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if err := d.client.Send(ctx, ev.ToMessage(d.now())); err != nil {
		return fmt.Errorf("enqueue ingestion: %w", err)
	}
	telemetry.Info("ingestion.enqueued", map[string]any{
		"owner_id":    ev.OwnerID,
		"storage_key": ev.StorageKey,
		"request_id":  ev.RequestID,
	})
	return nil
}

var (
	_ Dispatcher = (*LocalDispatcher)(nil)
	_ Dispatcher = (*QueueDispatcher)(nil)
	_ Ingester   = (*Pipeline)(nil)
)
