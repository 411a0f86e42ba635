package collector

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/bibwatch/internal/result"
)

// UploadPass sends every PENDING_UPLOAD result to the remote endpoint in one
// batch. Only results that were part of the sent batch and are still pending
// advance to UPLOADED; on failure nothing changes and the next pass retries.
func (c *Collector) UploadPass(ctx context.Context) error {
	if c.uploader == nil {
		return nil
	}
	c.uploadMu.Lock()
	defer c.uploadMu.Unlock()

	c.mu.Lock()
	var (
		batch []string
		rows  []string
	)
	for _, id := range c.order {
		r := c.results[id]
		if r.State() != result.StatePendingUpload {
			continue
		}
		batch = append(batch, id)
		rows = append(rows, result.UploadRows(r.Snapshot())...)
	}
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	// Manual submissions without numbers are finalised without a request.
	if len(rows) > 0 {
		sendCtx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
		err := c.uploader.Send(sendCtx, rows)
		cancel()
		if err != nil {
			uploadPasses.WithLabelValues("failed").Inc()
			c.logger.Warn("upload failed, results stay pending",
				"results", len(batch), "rows", len(rows), "error", err)
			return fmt.Errorf("upload %d rows: %w", len(rows), err)
		}
		uploadedNumbers.Add(float64(len(rows)))
	}
	uploadPasses.WithLabelValues("ok").Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	advanced := 0
	for _, id := range batch {
		r, ok := c.results[id]
		if !ok || r.State() != result.StatePendingUpload {
			continue
		}
		if err := r.NextState(); err != nil {
			c.logger.Error("cannot finalise uploaded result", "identity", id, "error", err)
			continue
		}
		advanced++
	}
	if advanced > 0 {
		c.persistLocked(ctx)
	}
	c.logger.Info("upload pass complete", "results", advanced, "rows", len(rows))
	return nil
}

// uploadAfterMutation runs a pass and logs, but does not return, its error.
func (c *Collector) uploadAfterMutation(ctx context.Context) {
	if err := c.UploadPass(ctx); err != nil {
		c.logger.Debug("upload deferred to next pass", "error", err)
	}
}
