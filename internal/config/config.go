// Package config loads and validates bibwatch configuration and converts it
// into the option structs of the individual components.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MeKo-Tech/bibwatch/internal/models"
	"github.com/MeKo-Tech/bibwatch/internal/ocr"
	"github.com/MeKo-Tech/bibwatch/internal/pipeline"
	"github.com/MeKo-Tech/bibwatch/internal/rectify"
	"github.com/MeKo-Tech/bibwatch/internal/result"
	"github.com/MeKo-Tech/bibwatch/internal/review"
	"github.com/MeKo-Tech/bibwatch/internal/tags"
	"github.com/MeKo-Tech/bibwatch/internal/textdetect"
	"github.com/MeKo-Tech/bibwatch/internal/uploader"
	"github.com/MeKo-Tech/bibwatch/internal/utils"
	"github.com/MeKo-Tech/bibwatch/internal/watcher"
)

// Store drivers.
const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "pgx"
)

var (
	validLogLevels    = []string{"debug", "info", "warn", "error"}
	validStoreDrivers = []string{StoreFile, StoreSQLite, StorePostgres}
)

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() Config {
	td := textdetect.DefaultConfig()
	rc := rectify.DefaultConfig()
	oc := ocr.DefaultConfig()
	rv := review.DefaultConfig()

	return Config{
		LogLevel: "info",
		Category: result.CategoryFinish.Name(),
		Watch: WatchConfig{
			Dir:      "images",
			Interval: watcher.DefaultInterval,
		},
		Pipeline: PipelineConfig{
			Workers:   pipeline.MinWorkers,
			OutputDir: "",
			Detector: DetectorConfig{
				ModelPath:    "models/det.onnx",
				Threshold:    td.Threshold,
				BoxThreshold: td.BoxThreshold,
				MaxImageSize: td.MaxSide,
			},
			Rectify: RectifyConfig{
				Padding:   rc.Padding,
				MinHeight: rc.MinHeight,
				MaxHeight: rc.MaxHeight,
			},
			OCR: OCRConfig{
				Language: oc.Language,
				PSM:      oc.PageSegMode,
				Binarize: oc.Preprocess.Binarize,
			},
			Tags: TagsConfig{Min: tags.DefaultMin, Max: tags.DefaultMax},
		},
		Store: StoreConfig{
			Driver: StoreFile,
			Path:   "results.txt",
		},
		Upload: UploadConfig{
			User:    "AI",
			Timeout: uploader.DefaultTimeout,
		},
		Server: ServerConfig{
			Host:            rv.Host,
			Port:            rv.Port,
			ShutdownTimeout: 10 * time.Second,
			WSInterval:      rv.WSInterval,
			MaxBodyBytes:    rv.MaxBodyBytes,
		},
	}
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %v)", c.LogLevel, validLogLevels)
	}
	if _, err := result.ParseCategory(c.Category); err != nil {
		return fmt.Errorf("invalid category: %w", err)
	}
	if c.Watch.Dir == "" {
		return errors.New("watch directory cannot be empty")
	}
	if c.Watch.Interval < 0 {
		return fmt.Errorf("invalid watch interval: %s", c.Watch.Interval)
	}
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if c.Upload.Timeout < 0 {
		return fmt.Errorf("invalid upload timeout: %s", c.Upload.Timeout)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid max body size: %d", c.Server.MaxBodyBytes)
	}
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == 0 {
		return errors.New("telegram chat id is required when a token is set")
	}
	return nil
}

func (p *PipelineConfig) validate() error {
	if err := p.ToPipelineConfig().Validate(); err != nil {
		return err
	}
	if p.Detector.ModelPath == "" {
		return errors.New("detector model path cannot be empty")
	}
	if err := validateThreshold(float64(p.Detector.Threshold), "detector threshold"); err != nil {
		return err
	}
	if err := validateThreshold(p.Detector.BoxThreshold, "detector box threshold"); err != nil {
		return err
	}
	if p.Detector.MaxImageSize < 32 {
		return fmt.Errorf("invalid max image size: %d (must be at least 32)", p.Detector.MaxImageSize)
	}
	if p.Detector.NumThreads < 0 {
		return fmt.Errorf("invalid detector threads: %d", p.Detector.NumThreads)
	}
	if p.Detector.GPUDevice < 0 {
		return fmt.Errorf("invalid gpu device: %d", p.Detector.GPUDevice)
	}
	if p.Rectify.Padding < 1 {
		return fmt.Errorf("invalid rectify padding: %.2f (must be at least 1)", p.Rectify.Padding)
	}
	if p.Rectify.MinHeight <= 0 || p.Rectify.MaxHeight < p.Rectify.MinHeight {
		return fmt.Errorf("invalid rectify heights: min %d, max %d", p.Rectify.MinHeight, p.Rectify.MaxHeight)
	}
	if p.OCR.PSM < 0 || p.OCR.PSM > 13 {
		return fmt.Errorf("invalid page segmentation mode: %d (must be 0-13)", p.OCR.PSM)
	}
	if p.Tags.File == "" && (p.Tags.Min < 0 || p.Tags.Max < p.Tags.Min) {
		return fmt.Errorf("invalid tag range: %d..%d", p.Tags.Min, p.Tags.Max)
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if !slices.Contains(validStoreDrivers, s.Driver) {
		return fmt.Errorf("invalid store driver: %s (must be one of: %v)", s.Driver, validStoreDrivers)
	}
	if s.Driver == StoreFile && s.Path == "" {
		return errors.New("store path cannot be empty")
	}
	if s.Driver != StoreFile && s.DSN == "" {
		return fmt.Errorf("store dsn is required for driver %s", s.Driver)
	}
	return nil
}

// ResultCategory returns the parsed upload category.
func (c *Config) ResultCategory() result.Category {
	cat, err := result.ParseCategory(c.Category)
	if err != nil {
		return result.CategoryFinish
	}
	return cat
}

// ToWatcherConfig converts to watcher options. Only supported images are
// registered.
func (c *Config) ToWatcherConfig() watcher.Config {
	return watcher.Config{
		Dir:      c.Watch.Dir,
		Interval: c.Watch.Interval,
		Notify:   c.Watch.Notify,
		Accept:   utils.IsSupportedImage,
	}
}

// ToPipelineConfig converts to pipeline options.
func (p *PipelineConfig) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		Workers:   p.Workers,
		OutputDir: p.OutputDir,
		SaveCrops: p.SaveCrops,
	}
}

// ToDetectorConfig converts to text detector options.
func (p *PipelineConfig) ToDetectorConfig() textdetect.Config {
	cfg := textdetect.DefaultConfig()
	cfg.ModelPath = models.ResolveModelPath(p.Detector.ModelPath)
	cfg.LibraryPath = p.Detector.LibraryPath
	cfg.Threshold = p.Detector.Threshold
	cfg.BoxThreshold = p.Detector.BoxThreshold
	cfg.MaxSide = p.Detector.MaxImageSize
	cfg.NumThreads = p.Detector.NumThreads
	cfg.GPU = textdetect.GPUConfig{
		Enabled:  p.Detector.GPU,
		DeviceID: p.Detector.GPUDevice,
		MemLimit: p.Detector.GPUMemLimit,
	}
	return cfg
}

// ToRectifyConfig converts to rectifier options.
func (p *PipelineConfig) ToRectifyConfig() rectify.Config {
	return rectify.Config{
		Padding:   p.Rectify.Padding,
		MinHeight: p.Rectify.MinHeight,
		MaxHeight: p.Rectify.MaxHeight,
	}
}

// ToOCRConfig converts to reader options.
func (p *PipelineConfig) ToOCRConfig() ocr.Config {
	cfg := ocr.DefaultConfig()
	cfg.Language = p.OCR.Language
	cfg.PageSegMode = p.OCR.PSM
	cfg.TessdataPrefix = p.OCR.Tessdata
	cfg.Preprocess.Binarize = p.OCR.Binarize
	return cfg
}

// LoadTags builds the bib number registry.
func (p *PipelineConfig) LoadTags() (*tags.Registry, error) {
	if p.Tags.File != "" {
		return tags.LoadFile(p.Tags.File)
	}
	return tags.NewRange(p.Tags.Min, p.Tags.Max), nil
}

// ToUploaderConfig converts to uploader options.
func (u *UploadConfig) ToUploaderConfig() uploader.Config {
	return uploader.Config{
		URL:      u.URL,
		User:     u.User,
		Password: u.Password,
		Timeout:  u.Timeout,
	}
}

// ToReviewConfig converts to review server options.
func (s *ServerConfig) ToReviewConfig(version string) review.Config {
	return review.Config{
		Host:         s.Host,
		Port:         s.Port,
		WSInterval:   s.WSInterval,
		MaxBodyBytes: s.MaxBodyBytes,
		Version:      version,
	}
}

func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
