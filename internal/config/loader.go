package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "bibwatch"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "BIBWATCH"

	// DotEnvFile is read into the environment before variables are bound.
	// Variables already set win.
	DotEnvFile = ".env"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, so flags bound
// by the command line take part in loading.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewIsolatedLoader creates a loader with its own viper instance.
func NewIsolatedLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load searches the default locations for a config file, applies
// environment variables and defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the final Validate.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	if err := l.setupEnvironmentVariables(); err != nil {
		return nil, err
	}
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &config, nil
}

// Set overrides a configuration key.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// GetResolvedConfig returns every resolved setting.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() error {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading %s: %w", DotEnvFile, err)
	}

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	return nil
}

// setDefaults registers every key, which also makes AutomaticEnv see
// nested keys during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)
	l.v.SetDefault("category", d.Category)

	l.v.SetDefault("watch.dir", d.Watch.Dir)
	l.v.SetDefault("watch.interval", d.Watch.Interval)
	l.v.SetDefault("watch.notify", d.Watch.Notify)

	l.v.SetDefault("pipeline.workers", d.Pipeline.Workers)
	l.v.SetDefault("pipeline.output_dir", d.Pipeline.OutputDir)
	l.v.SetDefault("pipeline.save_crops", d.Pipeline.SaveCrops)
	l.v.SetDefault("pipeline.detector.model_path", d.Pipeline.Detector.ModelPath)
	l.v.SetDefault("pipeline.detector.library_path", d.Pipeline.Detector.LibraryPath)
	l.v.SetDefault("pipeline.detector.threshold", d.Pipeline.Detector.Threshold)
	l.v.SetDefault("pipeline.detector.box_threshold", d.Pipeline.Detector.BoxThreshold)
	l.v.SetDefault("pipeline.detector.max_image_size", d.Pipeline.Detector.MaxImageSize)
	l.v.SetDefault("pipeline.detector.num_threads", d.Pipeline.Detector.NumThreads)
	l.v.SetDefault("pipeline.detector.gpu", d.Pipeline.Detector.GPU)
	l.v.SetDefault("pipeline.detector.gpu_device", d.Pipeline.Detector.GPUDevice)
	l.v.SetDefault("pipeline.detector.gpu_mem_limit", d.Pipeline.Detector.GPUMemLimit)
	l.v.SetDefault("pipeline.rectify.opencv", d.Pipeline.Rectify.OpenCV)
	l.v.SetDefault("pipeline.rectify.padding", d.Pipeline.Rectify.Padding)
	l.v.SetDefault("pipeline.rectify.min_height", d.Pipeline.Rectify.MinHeight)
	l.v.SetDefault("pipeline.rectify.max_height", d.Pipeline.Rectify.MaxHeight)
	l.v.SetDefault("pipeline.ocr.language", d.Pipeline.OCR.Language)
	l.v.SetDefault("pipeline.ocr.psm", d.Pipeline.OCR.PSM)
	l.v.SetDefault("pipeline.ocr.tessdata", d.Pipeline.OCR.Tessdata)
	l.v.SetDefault("pipeline.ocr.binarize", d.Pipeline.OCR.Binarize)
	l.v.SetDefault("pipeline.tags.file", d.Pipeline.Tags.File)
	l.v.SetDefault("pipeline.tags.min", d.Pipeline.Tags.Min)
	l.v.SetDefault("pipeline.tags.max", d.Pipeline.Tags.Max)

	l.v.SetDefault("store.driver", d.Store.Driver)
	l.v.SetDefault("store.path", d.Store.Path)
	l.v.SetDefault("store.dsn", d.Store.DSN)

	l.v.SetDefault("upload.url", d.Upload.URL)
	l.v.SetDefault("upload.user", d.Upload.User)
	l.v.SetDefault("upload.password", d.Upload.Password)
	l.v.SetDefault("upload.timeout", d.Upload.Timeout)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.ws_interval", d.Server.WSInterval)
	l.v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)

	l.v.SetDefault("notify.telegram_token", d.Notify.TelegramToken)
	l.v.SetDefault("notify.telegram_chat_id", d.Notify.TelegramChatID)
}

// GenerateDefaultConfigFile writes the defaults as YAML to filename
// (bibwatch.yaml when empty).
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	l := NewIsolatedLoader()
	l.setDefaults()
	return l.v.WriteConfigAs(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	home, herr := os.UserHomeDir()
	if herr == nil {
		paths = append(paths, home)
	}

	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if herr == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return append(paths, "/etc/"+ConfigFileName)
}
