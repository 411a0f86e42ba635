package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/bibwatch/internal/collector"
	"github.com/MeKo-Tech/bibwatch/internal/config"
	"github.com/MeKo-Tech/bibwatch/internal/notify"
	"github.com/MeKo-Tech/bibwatch/internal/ocr"
	"github.com/MeKo-Tech/bibwatch/internal/pipeline"
	"github.com/MeKo-Tech/bibwatch/internal/rectify"
	"github.com/MeKo-Tech/bibwatch/internal/textdetect"
)

// openStore returns the result store selected by cfg.Store.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (collector.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreFile:
		return collector.NewFileStore(cfg.Store.Path, logger)
	case config.StoreSQLite, config.StorePostgres:
		return collector.OpenSQLStore(ctx, cfg.Store.Driver, cfg.Store.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// buildPipeline wires detector, rectifier, reader and tag registry into a
// pipeline. The returned release func closes the native resources.
func buildPipeline(cfg *config.Config, logger *slog.Logger, opts ...pipeline.Option) (*pipeline.Pipeline, func(), error) {
	pc := &cfg.Pipeline

	registry, err := pc.LoadTags()
	if err != nil {
		return nil, nil, err
	}

	det, err := textdetect.New(pc.ToDetectorConfig(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init text detector: %w", err)
	}

	reader, err := ocr.NewReader(pc.ToOCRConfig())
	if err != nil {
		_ = det.Close()
		return nil, nil, fmt.Errorf("init ocr reader: %w", err)
	}

	rect, closeRect := buildRectifier(pc, logger)

	release := func() {
		closeRect()
		if err := reader.Close(); err != nil {
			logger.Warn("closing ocr reader", "error", err)
		}
		if err := det.Close(); err != nil {
			logger.Warn("closing text detector", "error", err)
		}
	}

	opts = append([]pipeline.Option{pipeline.WithLogger(logger)}, opts...)
	p, err := pipeline.New(pc.ToPipelineConfig(), det, rect, reader, registry, opts...)
	if err != nil {
		release()
		return nil, nil, err
	}
	logger.Info("pipeline ready", "workers", pc.Workers, "known_tags", registry.Len())
	return p, release, nil
}

// buildRectifier prefers OpenCV when configured and compiled in.
func buildRectifier(pc *config.PipelineConfig, logger *slog.Logger) (pipeline.Rectifier, func()) {
	rc := pc.ToRectifyConfig()
	if pc.Rectify.OpenCV {
		cv, err := rectify.NewCV(rc)
		if err == nil {
			return cv, func() { _ = cv.Close() }
		}
		if !errors.Is(err, rectify.ErrCVUnavailable) {
			logger.Warn("opencv rectifier failed, using built-in warp", "error", err)
		} else {
			logger.Warn("binary built without opencv, using built-in warp")
		}
	}
	return rectify.New(rc), func() {}
}

// buildNotifier always logs and additionally posts to Telegram when a token
// is configured.
func buildNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	n := notify.Multi{notify.LogNotifier{Logger: logger}}
	if cfg.Notify.TelegramToken == "" {
		return n
	}
	tg, err := notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, logger)
	if err != nil {
		logger.Warn("telegram notifications disabled", "error", err)
		return n
	}
	return append(n, tg)
}
