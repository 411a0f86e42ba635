//nolint:lll
package config

import "time"

// Config is the complete bibwatch configuration. It is read from a YAML
// file, BIBWATCH_* environment variables and command-line flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	// Category tags every upload row: "car" or "finish".
	Category string `mapstructure:"category" yaml:"category" json:"category"`

	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch" json:"watch"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store" json:"store"`
	Upload   UploadConfig   `mapstructure:"upload" yaml:"upload" json:"upload"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Notify   NotifyConfig   `mapstructure:"notify" yaml:"notify" json:"notify"`
}

// WatchConfig controls the directory watcher.
type WatchConfig struct {
	Dir      string        `mapstructure:"dir" yaml:"dir" json:"dir"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval" json:"interval"`
	// Notify enables fsnotify wake-ups on top of polling.
	Notify bool `mapstructure:"notify" yaml:"notify" json:"notify"`
}

// PipelineConfig contains detection pipeline settings.
type PipelineConfig struct {
	Workers   int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	SaveCrops bool   `mapstructure:"save_crops" yaml:"save_crops" json:"save_crops"`

	Detector DetectorConfig `mapstructure:"detector" yaml:"detector" json:"detector"`
	Rectify  RectifyConfig  `mapstructure:"rectify" yaml:"rectify" json:"rectify"`
	OCR      OCRConfig      `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Tags     TagsConfig     `mapstructure:"tags" yaml:"tags" json:"tags"`
}

// DetectorConfig contains text region detection settings.
type DetectorConfig struct {
	ModelPath    string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	LibraryPath  string  `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
	Threshold    float32 `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	BoxThreshold float64 `mapstructure:"box_threshold" yaml:"box_threshold" json:"box_threshold"`
	MaxImageSize int     `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`
	NumThreads   int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`

	// GPU runs detection through the CUDA provider, falling back to CPU.
	GPU         bool   `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
	GPUDevice   int    `mapstructure:"gpu_device" yaml:"gpu_device" json:"gpu_device"`
	GPUMemLimit uint64 `mapstructure:"gpu_mem_limit" yaml:"gpu_mem_limit" json:"gpu_mem_limit"`
}

// RectifyConfig selects and tunes the perspective rectifier.
type RectifyConfig struct {
	// OpenCV uses the gocv warper when the binary was built with it.
	OpenCV    bool    `mapstructure:"opencv" yaml:"opencv" json:"opencv"`
	Padding   float64 `mapstructure:"padding" yaml:"padding" json:"padding"`
	MinHeight int     `mapstructure:"min_height" yaml:"min_height" json:"min_height"`
	MaxHeight int     `mapstructure:"max_height" yaml:"max_height" json:"max_height"`
}

// OCRConfig contains Tesseract settings.
type OCRConfig struct {
	Language string `mapstructure:"language" yaml:"language" json:"language"`
	PSM      int    `mapstructure:"psm" yaml:"psm" json:"psm"`
	Tessdata string `mapstructure:"tessdata" yaml:"tessdata" json:"tessdata"`
	Binarize bool   `mapstructure:"binarize" yaml:"binarize" json:"binarize"`
}

// TagsConfig describes the set of valid bib numbers. File takes precedence
// over the Min..Max range.
type TagsConfig struct {
	File string `mapstructure:"file" yaml:"file" json:"file"`
	Min  int    `mapstructure:"min" yaml:"min" json:"min"`
	Max  int    `mapstructure:"max" yaml:"max" json:"max"`
}

// StoreConfig selects the result store backend.
type StoreConfig struct {
	// Driver is one of file, sqlite or pgx.
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`
	// Path is the results file for the file driver.
	Path string `mapstructure:"path" yaml:"path" json:"path"`
	// DSN is the data source for the sqlite and pgx drivers.
	DSN string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
}

// UploadConfig contains the remote endpoint settings.
type UploadConfig struct {
	URL      string        `mapstructure:"url" yaml:"url" json:"url"`
	User     string        `mapstructure:"user" yaml:"user" json:"user"`
	Password string        `mapstructure:"password" yaml:"password" json:"-"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// ServerConfig contains manual review server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host" json:"host"`
	Port            int           `mapstructure:"port" yaml:"port" json:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	WSInterval      time.Duration `mapstructure:"ws_interval" yaml:"ws_interval" json:"ws_interval"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes" json:"max_body_bytes"`
}

// NotifyConfig contains Telegram settings. An empty token disables it.
type NotifyConfig struct {
	TelegramToken  string `mapstructure:"telegram_token" yaml:"telegram_token" json:"-"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id" yaml:"telegram_chat_id" json:"telegram_chat_id"`
}
