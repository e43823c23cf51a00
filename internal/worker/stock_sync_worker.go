package worker

// stock_sync_worker.go
// Processes stock-changed notifications from QueueStockSync and POSTs them to
// the configured downstream catalog mirrors. Fire-and-forget from the core's
// perspective: the issuing workflow never waits on, or fails because of,
// a mirror.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// StockSyncPayload is the job envelope sent to QueueStockSync.
type StockSyncPayload struct {
	SKU         string `json:"sku"`
	NewQuantity int    `json:"new_quantity"`
}

// StockSyncWorker pushes stock snapshots to external catalog mirrors.
type StockSyncWorker struct {
	mirrorURLs []string
	client     *http.Client
}

func NewStockSyncWorker(mirrorURLs []string) *StockSyncWorker {
	return &StockSyncWorker{
		mirrorURLs: mirrorURLs,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Process notifies every mirror. Each mirror gets its own retry budget; a
// mirror that stays down only costs a DLQ entry, never a workflow failure.
func (w *StockSyncWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload StockSyncPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("stock_sync_worker: invalid payload")
		return nil // malformed jobs are dropped, not retried
	}
	if len(w.mirrorURLs) == 0 {
		return nil
	}

	body, _ := json.Marshal(payload)
	var lastErr error
	for _, url := range w.mirrorURLs {
		err := withRetry(ctx, maxJobAttempts, func(attempt int) error {
			if err := w.notify(ctx, url, body); err != nil {
				log.Warn().
					Err(err).
					Int("attempt", attempt+1).
					Str("mirror", url).
					Str("sku", payload.SKU).
					Msg("stock_sync_worker: mirror notification failed, retrying")
				return err
			}
			return nil
		})
		if err != nil {
			log.Error().Err(err).Str("mirror", url).Str("sku", payload.SKU).
				Msg("stock_sync_worker: mirror unreachable after all retries")
			lastErr = err
			continue
		}
		log.Info().Str("mirror", url).Str("sku", payload.SKU).Int("new_quantity", payload.NewQuantity).
			Msg("stock_sync_worker: mirror notified")
	}
	return lastErr
}

func (w *StockSyncWorker) notify(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mirror returned status %d", resp.StatusCode)
	}
	return nil
}
