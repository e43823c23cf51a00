package worker

// dlq.go — dead letter queues for the async pipeline.
// A job that exhausts its retries lands on a Redis list keyed by its source
// queue (dlq:jobs:invoice_pdf, dlq:jobs:email, dlq:jobs:stock_sync). Entries
// carry a correlation reference lifted from the payload so an operator can
// find the invoice or SKU a dead job belongs to without decoding it.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DLQEntry wraps a dead job with enough context to diagnose and requeue it.
type DLQEntry struct {
	SourceQueue string          `json:"source_queue"`
	JobType     string          `json:"job_type"`
	Payload     json.RawMessage `json:"payload"`
	// Correlation identifies the domain object the job was working on:
	// an invoice ID for PDF and email jobs, a SKU for stock mirroring.
	Correlation string `json:"correlation,omitempty"`
	Reason      string `json:"reason"`
	FailedAt    string `json:"failed_at"` // RFC 3339
	Attempts    int    `json:"attempts"`
}

// correlationRef extracts the domain reference from a job payload. Every
// payload in this pipeline carries either an invoice_id or a sku; a payload
// with neither yields an empty correlation, never an error.
func correlationRef(payload json.RawMessage) string {
	var ref struct {
		InvoiceID string `json:"invoice_id"`
		SKU       string `json:"sku"`
	}
	if err := json.Unmarshal(payload, &ref); err != nil {
		return ""
	}
	if ref.InvoiceID != "" {
		return ref.InvoiceID
	}
	return ref.SKU
}

// SendToDLQ parks a job that exhausted its retries. Push failures are logged
// and dropped: the DLQ is an operator convenience, not a durability layer,
// and the failure reason is already on the log line.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue string, jobType string, payload json.RawMessage, reason string, attempts int) {
	entry := DLQEntry{
		SourceQueue: queue,
		JobType:     jobType,
		Payload:     payload,
		Correlation: correlationRef(payload),
		Reason:      reason,
		FailedAt:    time.Now().UTC().Format(time.RFC3339),
		Attempts:    attempts,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}

	dlqKey := DLQPrefix + queue
	if err := rdb.LPush(ctx, dlqKey, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: failed to push entry")
		return
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("correlation", entry.Correlation).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: job moved to dead letter queue")
}

// DLQDepths reports the number of dead jobs per source queue, keyed by the
// queue name. Used by the health endpoint so a growing backlog is visible
// without shelling into Redis.
func DLQDepths(ctx context.Context, rdb *redis.Client, queues ...string) map[string]int64 {
	depths := make(map[string]int64, len(queues))
	for _, q := range queues {
		n, err := rdb.LLen(ctx, DLQPrefix+q).Result()
		if err != nil {
			log.Warn().Err(err).Str("queue", q).Msg("dlq: depth probe failed")
			continue
		}
		depths[q] = n
	}
	return depths
}
