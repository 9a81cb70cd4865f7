package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pdfchat-backend/internal/documents"
	"pdfchat-backend/internal/embedding"
	"pdfchat-backend/internal/extract"
	"pdfchat-backend/internal/fetch"
	"pdfchat-backend/internal/quota"
	"pdfchat-backend/internal/shared/apperr"
	"pdfchat-backend/internal/shared/metrics"
	"pdfchat-backend/internal/shared/telemetry"
	"pdfchat-backend/internal/vectorindex"
)

const (
	// DefaultBatchSize is the number of pages sent per embedding call.
	DefaultBatchSize = 16
	// DefaultConcurrency bounds in-flight embedding batches per document.
	DefaultConcurrency = 4

	failureWriteTimeout = 15 * time.Second
)

// Pipeline runs document ingestion. Each Ingest call is independent.
type Pipeline struct {
	Docs        documents.Repo
	Fetcher     fetch.Fetcher
	Embedder    embedding.Embedder
	Index       vectorindex.Index
	Quotas      *quota.Table
	BatchSize   int
	Concurrency int

	// Split turns the fetched bytes into page units.
	Split func(ctx context.Context, data []byte) ([]string, error)

	newID func() string
}

// NewPipeline wires a Pipeline with default batching.
func NewPipeline(docs documents.Repo, fetcher fetch.Fetcher, embedder embedding.Embedder, index vectorindex.Index, quotas *quota.Table) *Pipeline {
	if quotas == nil {
		quotas = quota.Defaults()
	}
	return &Pipeline{
		Docs:        docs,
		Fetcher:     fetcher,
		Embedder:    embedder,
		Index:       index,
		Quotas:      quotas,
		BatchSize:   DefaultBatchSize,
		Concurrency: DefaultConcurrency,
		Split:       extract.SplitPages,
		newID:       uuid.NewString,
	}
}

// Ingest creates the document record and indexes its pages. A second event
// for the same (StorageKey, OwnerID) returns the existing document with
// Duplicate set and changes nothing. Once the record exists every failure is
// terminal: the document is marked FAILED and its partition is cleared.
func (p *Pipeline) Ingest(ctx context.Context, ev Event) (res Result, err error) {
	if err := ev.Validate(); err != nil {
		return Result{}, err
	}

	doc, created, err := p.Docs.CreateIfAbsent(ctx, documents.Document{
		ID:         p.nextID(),
		OwnerID:    ev.OwnerID,
		StorageKey: ev.StorageKey,
		SourceURL:  ev.SourceURL,
		Name:       ev.FileName,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create document: %w", err)
	}
	res = Result{DocumentID: doc.ID}
	if !created {
		res.Duplicate = true
		res.Pages = doc.PageCount
		metrics.IncIngestionDuplicate()
		telemetry.Info("ingestion.duplicate", eventFields(ev, doc.ID, map[string]any{
			"upload_status": string(doc.UploadStatus),
		}))
		return res, nil
	}

	metrics.IncIngestionStarted()
	telemetry.Info("ingestion.started", eventFields(ev, doc.ID, nil))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingestion panic: %v", r)
		}
		metrics.ObserveIngestionDurationMs(float64(time.Since(start).Milliseconds()))
		if err != nil {
			p.fail(ctx, doc.ID, ev, err)
		}
	}()

	pages, err := p.index(ctx, doc.ID, ev)
	if err != nil {
		return res, err
	}
	res.Pages = pages

	if err := p.Docs.Transition(ctx, doc.ID, documents.StatusUpdate{
		Status:    documents.StatusSuccess,
		PageCount: pages,
	}); err != nil {
		return res, fmt.Errorf("mark success: %w", err)
	}

	metrics.IncIngestionSucceeded()
	metrics.AddIngestionPages(pages)
	telemetry.Info("ingestion.status", eventFields(ev, doc.ID, map[string]any{
		"status_transition": "PROCESSING->SUCCESS",
		"pages":             pages,
		"duration_ms":       time.Since(start).Milliseconds(),
	}))
	return res, nil
}

// index runs fetch, split, quota, embed and upsert. It returns the page count.
func (p *Pipeline) index(ctx context.Context, documentID string, ev Event) (int, error) {
	data, err := p.Fetcher.Fetch(ctx, ev.SourceURL)
	if err != nil {
		return 0, err
	}

	split := p.Split
	if split == nil {
		split = extract.SplitPages
	}
	pages, err := split(ctx, data)
	if err != nil {
		return 0, err
	}

	if err := p.Quotas.CheckPages(ev.Tier, len(pages)); err != nil {
		metrics.IncIngestionQuotaRejected()
		return len(pages), err
	}

	passages, err := p.embedPages(ctx, documentID, pages)
	if err != nil {
		return len(pages), err
	}
	if len(passages) > 0 {
		if err := p.Index.Upsert(ctx, documentID, passages); err != nil {
			return len(pages), apperr.Upstream(apperr.ErrIndex, "upsert passages", err)
		}
	}
	return len(pages), nil
}

// embedPages embeds every non-empty page. Batches run concurrently but the
// returned passages stay in page order.
func (p *Pipeline) embedPages(ctx context.Context, documentID string, pages []string) ([]vectorindex.Passage, error) {
	passages := make([]vectorindex.Passage, 0, len(pages))
	for i, text := range pages {
		if text == "" {
			continue
		}
		passages = append(passages, vectorindex.Passage{DocumentID: documentID, Page: i + 1, Text: text})
	}

	batch := p.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.Concurrency))
	for lo := 0; lo < len(passages); lo += batch {
		hi := min(lo+batch, len(passages))
		chunk := passages[lo:hi]
		g.Go(func() error {
			texts := make([]string, len(chunk))
			for i := range chunk {
				texts[i] = chunk[i].Text
			}
			vectors, err := p.Embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return apperr.Upstream(apperr.ErrEmbeddingUnavailable, "embed pages", err)
			}
			if len(vectors) != len(chunk) {
				return apperr.Upstream(apperr.ErrEmbeddingUnavailable, "embed pages",
					fmt.Errorf("got %d vectors for %d pages", len(vectors), len(chunk)))
			}
			for i := range chunk {
				chunk[i].Vector = vectors[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return passages, nil
}

// fail records the terminal failure. It runs on a context detached from the
// caller so a cancelled request still leaves the document FAILED.
func (p *Pipeline) fail(ctx context.Context, documentID string, ev Event, cause error) {
	metrics.IncIngestionFailed()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	if err := p.Index.DeletePartition(ctx, documentID); err != nil {
		telemetry.Error("ingestion.cleanup_failed", eventFields(ev, documentID, map[string]any{"error": err}))
	}
	reason := apperr.Code(cause)
	if err := p.Docs.Transition(ctx, documentID, documents.StatusUpdate{
		Status:        documents.StatusFailed,
		FailureReason: reason,
	}); err != nil {
		telemetry.Error("ingestion.mark_failed_failed", eventFields(ev, documentID, map[string]any{"error": err}))
	}
	telemetry.Error("ingestion.status", eventFields(ev, documentID, map[string]any{
		"status_transition": "PROCESSING->FAILED",
		"failure_reason":    reason,
		"error":             cause,
	}))
}

func (p *Pipeline) nextID() string {
	if p.newID == nil {
		return uuid.NewString()
	}
	return p.newID()
}

func eventFields(ev Event, documentID string, extra map[string]any) map[string]any {
	fields := map[string]any{
		"document_id": documentID,
		"owner_id":    ev.OwnerID,
		"storage_key": ev.StorageKey,
		"tier":        ev.Tier,
	}
	if ev.RequestID != "" {
		fields["request_id"] = ev.RequestID
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}
