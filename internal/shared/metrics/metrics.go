package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	ingestionStartedTotal       atomic.Uint64
	ingestionSucceededTotal     atomic.Uint64
	ingestionFailedTotal        atomic.Uint64
	ingestionDuplicateTotal     atomic.Uint64
	ingestionQuotaRejectedTotal atomic.Uint64
	ingestionPagesTotal         atomic.Uint64

	chatTurnsTotal            atomic.Uint64
	chatTurnsFailedTotal      atomic.Uint64
	chatAnswersPersistedTotal atomic.Uint64

	workerJobsReceivedTotal             atomic.Uint64
	workerJobsCompletedTotal            atomic.Uint64
	workerJobsFailedTotal               atomic.Uint64
	workerJobsDeletedUnrecoverableTotal atomic.Uint64

	ingestionDuration  = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	chatStreamDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncIngestionStarted counts documents that entered PROCESSING.
func IncIngestionStarted() { ingestionStartedTotal.Add(1) }

// IncIngestionSucceeded counts documents that reached SUCCESS.
func IncIngestionSucceeded() { ingestionSucceededTotal.Add(1) }

// IncIngestionFailed counts documents that reached FAILED.
func IncIngestionFailed() { ingestionFailedTotal.Add(1) }

// IncIngestionDuplicate counts redelivered upload events that were ignored.
func IncIngestionDuplicate() { ingestionDuplicateTotal.Add(1) }

// IncIngestionQuotaRejected counts documents rejected by the page quota.
func IncIngestionQuotaRejected() { ingestionQuotaRejectedTotal.Add(1) }

// AddIngestionPages counts pages indexed.
func AddIngestionPages(n int) {
	if n > 0 {
		ingestionPagesTotal.Add(uint64(n))
	}
}

// IncChatTurn counts chat turns that passed authorization.
func IncChatTurn() { chatTurnsTotal.Add(1) }

// IncChatTurnFailed counts chat turns that ended in the failed phase.
func IncChatTurnFailed() { chatTurnsFailedTotal.Add(1) }

// IncChatAnswerPersisted counts assistant answers written after a complete stream.
func IncChatAnswerPersisted() { chatAnswersPersistedTotal.Add(1) }

// IncWorkerJobsReceived counts queue messages picked up by the worker.
func IncWorkerJobsReceived() { workerJobsReceivedTotal.Add(1) }

// IncWorkerJobsCompleted counts queue messages handled and deleted.
func IncWorkerJobsCompleted() { workerJobsCompletedTotal.Add(1) }

// IncWorkerJobsFailed counts queue messages left for redelivery.
func IncWorkerJobsFailed() { workerJobsFailedTotal.Add(1) }

// IncWorkerJobsDeletedUnrecoverable counts poison messages removed from the queue.
func IncWorkerJobsDeletedUnrecoverable() { workerJobsDeletedUnrecoverableTotal.Add(1) }

// ObserveIngestionDurationMs records an ingestion duration in milliseconds.
func ObserveIngestionDurationMs(value float64) {
	ingestionDuration.Observe(clampNonNegative(value))
}

// ObserveChatStreamDurationMs records a completion stream duration in milliseconds.
func ObserveChatStreamDurationMs(value float64) {
	chatStreamDuration.Observe(clampNonNegative(value))
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "ingestion_started_total", "Documents that entered PROCESSING", ingestionStartedTotal.Load())
	writeCounter(&buf, "ingestion_succeeded_total", "Documents that reached SUCCESS", ingestionSucceededTotal.Load())
	writeCounter(&buf, "ingestion_failed_total", "Documents that reached FAILED", ingestionFailedTotal.Load())
	writeCounter(&buf, "ingestion_duplicate_total", "Upload events ignored as duplicates", ingestionDuplicateTotal.Load())
	writeCounter(&buf, "ingestion_quota_rejected_total", "Documents rejected by the page quota", ingestionQuotaRejectedTotal.Load())
	writeCounter(&buf, "ingestion_pages_total", "Pages embedded and indexed", ingestionPagesTotal.Load())
	writeCounter(&buf, "chat_turns_total", "Chat turns started", chatTurnsTotal.Load())
	writeCounter(&buf, "chat_turns_failed_total", "Chat turns that failed", chatTurnsFailedTotal.Load())
	writeCounter(&buf, "chat_answers_persisted_total", "Assistant answers persisted", chatAnswersPersistedTotal.Load())
	writeCounter(&buf, "worker_jobs_received_total", "Queue messages received", workerJobsReceivedTotal.Load())
	writeCounter(&buf, "worker_jobs_completed_total", "Queue messages completed", workerJobsCompletedTotal.Load())
	writeCounter(&buf, "worker_jobs_failed_total", "Queue messages failed", workerJobsFailedTotal.Load())
	writeCounter(&buf, "worker_jobs_deleted_unrecoverable_total", "Poison queue messages deleted", workerJobsDeletedUnrecoverableTotal.Load())
	writeHistogram(&buf, "ingestion_duration_ms", "Ingestion duration in milliseconds", ingestionDuration.Snapshot())
	writeHistogram(&buf, "chat_stream_duration_ms", "Completion stream duration in milliseconds", chatStreamDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	// counts are already cumulative: Observe increments every bucket whose bound covers the value.
	for i, bound := range snap.buckets {
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), snap.counts[i])
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
