// Package dispatch connects the watcher to the detection pipeline: new files
// are claimed in the collector, detected in the background and written back.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Collector is the part of the result collector dispatch drives.
type Collector interface {
	PendingForDetection(ctx context.Context) []string
	Interrupted() []string
	ApplyAutomaticResults(ctx context.Context, found map[string][]int) error
}

// Detector runs a batch of images. Failed images are absent from the result.
type Detector interface {
	DetectBatch(ctx context.Context, paths []string) map[string][]int
}

// Dispatcher hands claimed results to the detector. Batches run on their
// own goroutines so the watcher never waits for detection.
type Dispatcher struct {
	collector Collector
	detector  Detector
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Dispatcher.
func New(c Collector, d Detector, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{collector: c, detector: d, logger: logger}
}

// Resume re-runs detection for results that were mid-detection when the
// previous process stopped, then picks up anything still at baseline.
func (d *Dispatcher) Resume(ctx context.Context) {
	if ids := d.collector.Interrupted(); len(ids) > 0 {
		d.logger.Info("resuming interrupted detection", "count", len(ids))
		d.dispatch(ctx, ids)
	}
	d.OnNewFiles(ctx, nil)
}

// OnNewFiles is a watcher listener. The notified list is only a trigger;
// the batch is whatever the collector still has at baseline, claimed
// atomically so concurrent notifications never dispatch an image twice.
func (d *Dispatcher) OnNewFiles(ctx context.Context, _ []string) {
	ids := d.collector.PendingForDetection(ctx)
	if len(ids) == 0 {
		return
	}
	d.dispatch(ctx, ids)
}

func (d *Dispatcher) dispatch(ctx context.Context, ids []string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatcher closed, leaving claimed results for the next start", "count", len(ids))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	// Detection runs to completion even when the caller's context ends.
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		d.run(ctx, ids)
	}()
}

func (d *Dispatcher) run(ctx context.Context, ids []string) {
	start := time.Now()
	d.logger.Info("detection batch dispatched", "count", len(ids))

	detected := d.detector.DetectBatch(ctx, ids)

	found := make(map[string][]int, len(ids))
	for _, id := range ids {
		found[id] = detected[id]
	}
	if err := d.collector.ApplyAutomaticResults(ctx, found); err != nil {
		d.logger.Error("failed to apply detection results", "error", err)
	}

	withNumbers := 0
	for _, nums := range detected {
		if len(nums) > 0 {
			withNumbers++
		}
	}
	d.logger.Info("detection batch applied",
		"count", len(ids),
		"with_numbers", withNumbers,
		"elapsed", time.Since(start).Round(time.Millisecond))
}

// Close refuses new batches and waits for running ones, or for ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain is Close followed, when ctx ends first, by an unbounded wait. It
// returns only once no batch is running, so the detector and reader may be
// released afterwards. A non-nil error reports that ctx was exceeded.
func (d *Dispatcher) Drain(ctx context.Context) error {
	err := d.Close(ctx)
	if err != nil {
		d.logger.Warn("detection still running after shutdown timeout, waiting for it to finish", "error", err)
		d.wg.Wait()
	}
	return err
}
