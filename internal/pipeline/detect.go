package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/bibwatch/internal/utils"
)

// DetectImage returns the known tag numbers found in the image at path, in
// the order they were read and without duplicates. Unsupported files fail
// with ErrUnsupportedFormat; every other failure wraps ErrProcessing.
func (p *Pipeline) DetectImage(ctx context.Context, path string) ([]int, error) {
	if !utils.IsSupportedImage(path) {
		imagesProcessed.WithLabelValues(outcomeUnsupported).Inc()
		p.logger.Warn("image format not supported", "path", path)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	p.countProcessed()
	start := time.Now()
	defer func() { detectionDuration.Observe(time.Since(start).Seconds()) }()

	numbers, err := p.detect(ctx, path)
	if err != nil {
		imagesProcessed.WithLabelValues(outcomeFailed).Inc()
		return nil, fmt.Errorf("%w: %s: %w", ErrProcessing, path, err)
	}

	if len(numbers) > 0 {
		p.countWithNumbers()
		imagesProcessed.WithLabelValues(outcomeFound).Inc()
	} else {
		imagesProcessed.WithLabelValues(outcomeEmpty).Inc()
	}
	p.logger.Info("image processed",
		"path", path,
		"numbers", numbers,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if err := p.writeOutput(path, numbers); err != nil {
		p.logger.Warn("failed to write detection output", "path", path, "error", err)
	}
	return numbers, nil
}

func (p *Pipeline) detect(ctx context.Context, path string) ([]int, error) {
	img, err := p.load(path)
	if err != nil {
		return nil, err
	}
	regions, err := p.detector.DetectRegions(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect regions: %w", err)
	}
	p.logger.Debug("regions detected", "path", path, "count", len(regions))

	var (
		numbers []int
		seen    = make(map[int]struct{})
	)
	for i, q := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		crop, err := p.rectifier.Rectify(img, q)
		if err != nil {
			p.logger.Debug("skipping region", "path", path, "region", i, "error", err)
			continue
		}
		p.saveCrop(path, i, crop)

		text, err := p.reader.ReadText(ctx, crop)
		if err != nil {
			return nil, fmt.Errorf("read region %d: %w", i, err)
		}
		n, ok := parseNumber(text)
		if !ok {
			p.logger.Debug("could not parse bib number", "path", path, "text", text)
			continue
		}
		if !p.validator.Known(n) {
			p.logger.Debug("number not registered", "path", path, "number", n)
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// parseNumber accepts OCR text consisting of a single non-negative integer.
func parseNumber(text string) (int, bool) {
	s := strings.TrimSpace(norm.NFKC.String(text))
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (p *Pipeline) imageOutputDir(path string) string {
	return filepath.Join(p.cfg.OutputDir, filepath.Base(path))
}

func (p *Pipeline) writeOutput(path string, numbers []int) error {
	if p.cfg.OutputDir == "" {
		return nil
	}
	dir := p.imageOutputDir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	var msg string
	if len(numbers) == 0 {
		msg = "No bib numbers found\n"
	} else {
		parts := make([]string, len(numbers))
		for i, n := range numbers {
			parts[i] = strconv.Itoa(n)
		}
		msg = "Found bib numbers: [" + strings.Join(parts, ", ") + "]\n"
	}
	return os.WriteFile(filepath.Join(dir, "output.txt"), []byte(msg), 0o600)
}

func (p *Pipeline) saveCrop(path string, idx int, crop image.Image) {
	if p.cfg.OutputDir == "" || !p.cfg.SaveCrops {
		return
	}
	dir := p.imageOutputDir(path)
	err := os.MkdirAll(dir, 0o750)
	if err == nil {
		name := fmt.Sprintf("region_%02d.png", idx)
		err = imaging.Save(crop, filepath.Join(dir, name))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Debug("failed to save region crop", "path", path, "region", idx, "error", err)
	}
}
