// Package collector owns the authoritative set of results. Every lifecycle
// transition goes through a Collector, which persists after each mutation and
// pushes confirmed numbers to the remote endpoint.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/MeKo-Tech/bibwatch/internal/result"
	"github.com/MeKo-Tech/bibwatch/internal/uploader"
)

// ErrUnknownIdentity is returned for identities that were never registered.
var ErrUnknownIdentity = errors.New("unknown identity")

// Uploader transmits upload rows. Any error leaves the batch pending.
type Uploader interface {
	Send(ctx context.Context, rows []string) error
}

// Observer is told about results that need a human.
type Observer interface {
	PendingManual(ctx context.Context, identities []string)
}

// Collector is safe for concurrent use. A single mutex guards the map and
// the persistence write; uploadMu serialises upload passes so a batch is never
// sent twice.
type Collector struct {
	mu          sync.Mutex
	results     map[string]*result.Result
	order       []string
	interrupted []string
	backlog     []string
	released    []string

	uploadMu sync.Mutex

	store         Store
	uploader      Uploader
	observer      Observer
	category      result.Category
	uploadTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
	modTime       func(string) (time.Time, error)
}

// Option configures a Collector.
type Option func(*Collector)

// WithCategory sets the category assigned to newly registered results.
func WithCategory(c result.Category) Option { return func(col *Collector) { col.category = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUploadTimeout bounds each upload call.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.uploadTimeout = d
		}
	}
}

// WithObserver registers a callback for results entering PENDING_MANUALLY.
func WithObserver(o Observer) Option { return func(c *Collector) { c.observer = o } }

// WithClock overrides time.Now, used when a capture time cannot be read.
func WithClock(now func() time.Time) Option { return func(c *Collector) { c.now = now } }

// WithModTime overrides how capture times are derived from identities.
func WithModTime(fn func(string) (time.Time, error)) Option {
	return func(c *Collector) { c.modTime = fn }
}

func fileModTime(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// New creates an empty collector. Call Load to replay persisted state.
// A nil uploader disables upload passes.
func New(store Store, up Uploader, opts ...Option) *Collector {
	c := &Collector{
		results:       make(map[string]*result.Result),
		store:         store,
		uploader:      up,
		category:      result.CategoryFinish,
		uploadTimeout: uploader.DefaultTimeout,
		logger:        slog.Default(),
		now:           time.Now,
		modTime:       fileModTime,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Load replays the store into memory and runs one upload pass. Results left
// mid-detection are remembered for Interrupted; results a reviewer held are
// offered again by NextManualPending.
func (c *Collector) Load(ctx context.Context) error {
	c.mu.Lock()
	snaps, err := c.store.Load(ctx)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("load results: %w", err)
	}
	for _, s := range snaps {
		if _, dup := c.results[s.Identity]; dup {
			c.logger.Warn("duplicate result in store", "identity", s.Identity)
			continue
		}
		if s.CaptureTime.IsZero() {
			s.CaptureTime = c.captureTime(s.Identity)
		}
		c.insertLocked(result.Restore(s))
		switch s.State {
		case result.StateDetectingAI:
			c.interrupted = append(c.interrupted, s.Identity)
		case result.StateDetectingManually:
			c.backlog = append(c.backlog, s.Identity)
		}
	}
	c.updateGaugesLocked()
	c.mu.Unlock()

	c.logger.Info("results loaded",
		"count", len(snaps),
		"interrupted", len(c.interrupted),
		"manual_backlog", len(c.backlog))

	if err := c.UploadPass(ctx); err != nil {
		c.logger.Warn("startup upload pass failed", "error", err)
	}
	return nil
}

// Close releases the store.
func (c *Collector) Close() error {
	return c.store.Close()
}

func (c *Collector) insertLocked(r *result.Result) {
	c.results[r.Identity()] = r
	c.order = append(c.order, r.Identity())
}

func (c *Collector) captureTime(identity string) time.Time {
	t, err := c.modTime(identity)
	if err != nil {
		c.logger.Debug("capture time unavailable, using current time", "identity", identity, "error", err)
		return c.now()
	}
	return t
}

// Register creates baseline results for identities not yet known and
// returns the ones that were added.
func (c *Collector) Register(ctx context.Context, identities []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var added []string
	for _, id := range identities {
		if _, ok := c.results[id]; ok {
			continue
		}
		if !result.ValidIdentity(id) {
			c.logger.Warn("skipping identity that cannot be stored", "identity", id)
			continue
		}
		c.insertLocked(result.New(id, c.captureTime(id), c.category))
		added = append(added, id)
	}
	if len(added) > 0 {
		c.persistLocked(ctx)
		c.logger.Info("registered images", "count", len(added))
	}
	return added
}

// MarkDetectionStarted moves each named result from the baseline to
// DETECTING_AI. Failures are per item and do not stop the batch.
func (c *Collector) MarkDetectionStarted(ctx context.Context, identities []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	changed := false
	for _, id := range identities {
		r, ok := c.results[id]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w", id, ErrUnknownIdentity))
			continue
		}
		if err := r.DetectionStarted(); err != nil {
			c.logger.Warn("detection already started", "identity", id, "state", r.State().String())
			errs = append(errs, err)
			continue
		}
		changed = true
	}
	if changed {
		c.persistLocked(ctx)
	}
	return errors.Join(errs...)
}

// PendingForDetection claims every baseline result for automatic detection
// and returns their identities in registration order.
func (c *Collector) PendingForDetection(ctx context.Context) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var claimed []string
	for _, id := range c.order {
		r := c.results[id]
		if r.State() != result.StateRegistered {
			continue
		}
		if err := r.DetectionStarted(); err != nil {
			continue
		}
		claimed = append(claimed, id)
	}
	if len(claimed) > 0 {
		c.persistLocked(ctx)
	}
	return claimed
}

// Interrupted returns, once, the results that were mid-detection when the
// previous process stopped. They are already claimed.
func (c *Collector) Interrupted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.interrupted
	c.interrupted = nil
	return out
}

// ApplyAutomaticResults records pipeline output. Every entry gets its
// numbers added and advances once; empty sets route to manual review.
func (c *Collector) ApplyAutomaticResults(ctx context.Context, found map[string][]int) error {
	c.mu.Lock()
	var (
		errs   []error
		manual []string
	)
	for _, id := range slices.Sorted(maps.Keys(found)) {
		r, ok := c.results[id]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w", id, ErrUnknownIdentity))
			continue
		}
		if err := applyLocked(r, found[id]); err != nil {
			c.logger.Error("cannot apply detection result", "identity", id, "error", err)
			errs = append(errs, err)
			continue
		}
		if r.State() == result.StatePendingManually {
			manual = append(manual, id)
		}
	}
	c.persistLocked(ctx)
	c.mu.Unlock()

	if len(manual) > 0 && c.observer != nil {
		c.observer.PendingManual(ctx, manual)
	}
	c.uploadAfterMutation(ctx)
	return errors.Join(errs...)
}

// ApplyManualResult records an operator's numbers for one claimed result.
func (c *Collector) ApplyManualResult(ctx context.Context, identity string, numbers []int) error {
	c.mu.Lock()
	r, ok := c.results[identity]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", identity, ErrUnknownIdentity)
	}
	if err := applyLocked(r, numbers); err != nil {
		c.mu.Unlock()
		return err
	}
	match := func(id string) bool { return id == identity }
	c.backlog = slices.DeleteFunc(c.backlog, match)
	c.released = slices.DeleteFunc(c.released, match)
	c.persistLocked(ctx)
	c.mu.Unlock()

	c.uploadAfterMutation(ctx)
	return nil
}

// applyLocked adds numbers then advances; the state is untouched on error.
func applyLocked(r *result.Result, numbers []int) error {
	if !r.State().Detecting() {
		return &result.InvalidStateError{Identity: r.Identity(), State: r.State(), Op: "apply result"}
	}
	if err := r.AddNumbers(numbers...); err != nil {
		return err
	}
	return r.NextState()
}

// NextManualPending claims one result for a reviewer. Results held by a
// reviewer before a restart are handed out first, then PENDING_MANUALLY
// results in registration order, then results handed back by ReleaseClaim.
func (c *Collector) NextManualPending(ctx context.Context) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.backlog) > 0 {
		id := c.backlog[0]
		c.backlog = c.backlog[1:]
		if r, ok := c.results[id]; ok && r.State() == result.StateDetectingManually {
			return id, true
		}
	}

	for _, id := range c.order {
		r := c.results[id]
		if r.State() != result.StatePendingManually {
			continue
		}
		if err := r.NextState(); err != nil {
			continue
		}
		c.persistLocked(ctx)
		return id, true
	}

	for len(c.released) > 0 {
		id := c.released[0]
		c.released = c.released[1:]
		if r, ok := c.results[id]; ok && r.State() == result.StateDetectingManually {
			return id, true
		}
	}
	return "", false
}

// ReleaseClaim returns a result held by a reviewer to the end of the review
// queue without changing its state. It reports false when identity is not
// held by a reviewer.
func (c *Collector) ReleaseClaim(identity string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[identity]
	if !ok || r.State() != result.StateDetectingManually {
		return false
	}
	if !slices.Contains(c.backlog, identity) && !slices.Contains(c.released, identity) {
		c.released = append(c.released, identity)
	}
	return true
}

// Get returns a copy of one result.
func (c *Collector) Get(identity string) (result.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[identity]
	if !ok {
		return result.Snapshot{}, false
	}
	return r.Snapshot(), true
}

// Known reports whether identity has been registered.
func (c *Collector) Known(identity string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.results[identity]
	return ok
}

// ResolveClaimed maps a reviewer's reference to an identity. An exact
// identity wins; otherwise name must be the file name of exactly one result
// currently held by a reviewer.
func (c *Collector) ResolveClaimed(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.results[name]; ok {
		return name, true
	}
	match := ""
	for _, id := range c.order {
		if c.results[id].State() != result.StateDetectingManually || filepath.Base(id) != name {
			continue
		}
		if match != "" {
			return "", false
		}
		match = id
	}
	return match, match != ""
}

// Done reports whether identity has left the baseline state.
func (c *Collector) Done(identity string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[identity]
	return ok && r.State() != result.StateNew && r.State() != result.StateRegistered
}

// Snapshots returns copies of all results in registration order.
func (c *Collector) Snapshots() []result.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotsLocked()
}

func (c *Collector) snapshotsLocked() []result.Snapshot {
	out := make([]result.Snapshot, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.results[id].Snapshot())
	}
	return out
}

// Counts returns the number of results per state.
func (c *Collector) Counts() map[result.State]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countsLocked()
}

func (c *Collector) countsLocked() map[result.State]int {
	counts := make(map[result.State]int)
	for _, r := range c.results {
		counts[r.State()]++
	}
	return counts
}

// PendingManualCount returns how many results wait for a reviewer.
func (c *Collector) PendingManualCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.results {
		if r.State() == result.StatePendingManually {
			n++
		}
	}
	return n + len(c.backlog) + len(c.released)
}

// persistLocked writes the full result set. Failures are logged and counted
// but never abort the caller. The in-memory change has already been made, so
// the write outlives a cancelled caller context.
func (c *Collector) persistLocked(ctx context.Context) {
	defer c.updateGaugesLocked()
	if err := c.store.Save(context.WithoutCancel(ctx), c.snapshotsLocked()); err != nil {
		persistFailures.Inc()
		c.logger.Error("persisting results failed, recent state may be lost on restart",
			"count", len(c.results), "error", err)
	}
}

func (c *Collector) updateGaugesLocked() {
	counts := c.countsLocked()
	for _, s := range result.AllStates() {
		resultsByState.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
}
