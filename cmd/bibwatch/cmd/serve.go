package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/bibwatch/internal/collector"
	"github.com/MeKo-Tech/bibwatch/internal/dispatch"
	"github.com/MeKo-Tech/bibwatch/internal/pipeline"
	"github.com/MeKo-Tech/bibwatch/internal/review"
	"github.com/MeKo-Tech/bibwatch/internal/uploader"
	"github.com/MeKo-Tech/bibwatch/internal/version"
	"github.com/MeKo-Tech/bibwatch/internal/watcher"
)

// serveCmd runs the watcher, detection and manual review server until
// interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch a directory, detect bib numbers and serve manual review",
	Long: `Start the long-running service.

New photos in the watched directory are registered, run through detection
and uploaded when a known bib number was found. The rest is offered one by
one on the review page:

  GET  /           review page
  GET  /image      next image awaiting review (X-Identity header)
  POST /image/{id} JSON array of bib numbers for that image
  GET  /ws         pending review count feed
  GET  /healthz    health check
  GET  /metrics    Prometheus metrics

Examples:
  bibwatch serve
  bibwatch serve --dir /srv/photos --port 8081 --workers 4`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String("dir", "images", "directory to watch for photos")
	f.StringP("host", "H", "localhost", "review server host")
	f.IntP("port", "p", 8081, "review server port")
	f.IntP("workers", "w", pipeline.MinWorkers, "concurrent detection workers (1-10)")
	f.String("upload-url", "", "endpoint receiving detected numbers")
	f.Bool("notify", false, "use filesystem notifications to shorten polling")

	_ = viper.BindPFlag("watch.dir", f.Lookup("dir"))
	_ = viper.BindPFlag("server.host", f.Lookup("host"))
	_ = viper.BindPFlag("server.port", f.Lookup("port"))
	_ = viper.BindPFlag("pipeline.workers", f.Lookup("workers"))
	_ = viper.BindPFlag("upload.url", f.Lookup("upload-url"))
	_ = viper.BindPFlag("watch.notify", f.Lookup("notify"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}

	up := uploader.New(cfg.Upload.ToUploaderConfig(), nil, logger)
	col := collector.New(store, up,
		collector.WithCategory(cfg.ResultCategory()),
		collector.WithLogger(logger),
		collector.WithUploadTimeout(cfg.Upload.Timeout),
		collector.WithObserver(buildNotifier(cfg, logger)),
	)
	defer func() {
		if err := col.Close(); err != nil {
			logger.Error("closing result store", "error", err)
		}
	}()
	if err := col.Load(ctx); err != nil {
		return fmt.Errorf("load results: %w", err)
	}

	p, release, err := buildPipeline(cfg, logger,
		pipeline.WithProgress(pipeline.NewLogProgressCallback(logger, 10)))
	if err != nil {
		return err
	}
	defer release()

	disp := dispatch.New(col, p, logger)
	disp.Resume(ctx)

	w := watcher.New(cfg.ToWatcherConfig(), col, logger)
	w.AddListener(disp.OnNewFiles)

	srv, err := review.New(col, cfg.Server.ToReviewConfig(version.Version), logger)
	if err != nil {
		return fmt.Errorf("init review server: %w", err)
	}

	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Run(ctx) }()

	serveErr := srv.ListenAndServe(ctx, cfg.Server.ShutdownTimeout)
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	if serveErr != nil {
		logger.Error("review server stopped", "error", serveErr)
	}

	logger.Info("starting graceful shutdown", "timeout", cfg.Server.ShutdownTimeout)
	stop()
	w.Stop()
	if err := <-watchErr; err != nil {
		logger.Error("watcher stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	// Native detector and reader resources are released by the deferred
	// release, which must not run before every batch has been applied.
	if err := disp.Drain(shutdownCtx); err != nil {
		logger.Warn("detection outlasted the shutdown timeout", "error", err)
	}
	if err := p.Close(); err != nil {
		logger.Warn("closing pipeline", "error", err)
	}

	stats := p.Stats()
	logger.Info("graceful shutdown completed",
		"processed", stats.Processed, "with_numbers", stats.WithNumbers, "states", stateCounts(col))
	return serveErr
}

func stateCounts(col *collector.Collector) map[string]int {
	out := make(map[string]int)
	for st, n := range col.Counts() {
		out[st.String()] = n
	}
	return out
}
