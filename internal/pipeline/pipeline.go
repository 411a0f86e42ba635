// Package pipeline turns race photos into bib numbers: it finds candidate
// text regions, rectifies each one, reads it and keeps the numbers the tag
// registry knows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/bibwatch/internal/utils"
)

// Worker pool bounds.
const (
	MinWorkers = 1
	MaxWorkers = 10
)

// ErrUnsupportedFormat is returned for files outside the image allow-list.
// It is the same value utils.LoadImage wraps.
var ErrUnsupportedFormat = utils.ErrUnsupportedFormat

// ErrProcessing wraps every other per-image failure.
var ErrProcessing = errors.New("image processing failed")

// RegionDetector finds candidate text regions in an image.
type RegionDetector interface {
	DetectRegions(ctx context.Context, img image.Image) ([]utils.Quad, error)
}

// Rectifier maps a quadrilateral region to an upright raster.
type Rectifier interface {
	Rectify(img image.Image, q utils.Quad) (image.Image, error)
}

// TextReader reads the text in a rectified region.
type TextReader interface {
	ReadText(ctx context.Context, img image.Image) (string, error)
}

// TagValidator reports whether a parsed number is a registered tag.
type TagValidator interface {
	Known(n int) bool
}

// Config holds pipeline settings.
type Config struct {
	Workers int
	// OutputDir receives one sub-directory per image with an output.txt
	// summary. Empty disables output.
	OutputDir string
	// SaveCrops additionally writes every rectified region as PNG.
	SaveCrops bool
}

// DefaultConfig uses a single worker and no output directory.
func DefaultConfig() Config {
	return Config{Workers: MinWorkers}
}

// Validate checks the worker bound.
func (c Config) Validate() error {
	if c.Workers < MinWorkers || c.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between %d and %d, got %d", MinWorkers, MaxWorkers, c.Workers)
	}
	return nil
}

// Stats are the process-wide detection counters.
type Stats struct {
	Processed   int `json:"processed"`
	WithNumbers int `json:"with_numbers"`
}

// Percent returns the share of processed images with at least one number.
func (s Stats) Percent() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.WithNumbers) / float64(s.Processed) * 100
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgress reports batch progress to cb.
func WithProgress(cb ProgressCallback) Option {
	return func(p *Pipeline) {
		if cb != nil {
			p.progress = cb
		}
	}
}

// WithImageLoader replaces utils.LoadImage, mainly for tests.
func WithImageLoader(load func(path string) (image.Image, error)) Option {
	return func(p *Pipeline) {
		if load != nil {
			p.load = load
		}
	}
}

// Pipeline runs detection. All methods are safe for concurrent use.
type Pipeline struct {
	cfg       Config
	detector  RegionDetector
	rectifier Rectifier
	reader    TextReader
	validator TagValidator
	logger    *slog.Logger
	progress  ProgressCallback
	load      func(path string) (image.Image, error)

	statsMu sync.Mutex
	stats   Stats

	inflight sync.WaitGroup
}

// New validates cfg and wires the capabilities.
func New(cfg Config, det RegionDetector, rect Rectifier, reader TextReader, validator TagValidator, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if det == nil || rect == nil || reader == nil || validator == nil {
		return nil, errors.New("pipeline: detector, rectifier, reader and validator are required")
	}
	p := &Pipeline{
		cfg:       cfg,
		detector:  det,
		rectifier: rect,
		reader:    reader,
		validator: validator,
		logger:    slog.Default(),
		progress:  NoOpProgressCallback{},
		load:      utils.LoadImage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Stats returns a copy of the counters.
func (p *Pipeline) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

func (p *Pipeline) countProcessed() {
	p.statsMu.Lock()
	p.stats.Processed++
	p.statsMu.Unlock()
}

func (p *Pipeline) countWithNumbers() {
	p.statsMu.Lock()
	p.stats.WithNumbers++
	p.statsMu.Unlock()
}

// Wait blocks until every batch started so far has finished.
func (p *Pipeline) Wait() { p.inflight.Wait() }

// Close waits for in-flight work. Capabilities are owned by the caller.
func (p *Pipeline) Close() error {
	p.Wait()
	return nil
}
