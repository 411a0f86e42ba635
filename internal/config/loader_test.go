package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := NewIsolatedLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadWithFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "bibwatch.yaml")
	content := `
log_level: debug
category: car
watch:
  dir: /srv/photos
  interval: 250ms
pipeline:
  workers: 6
  detector:
    model_path: /models/det.onnx
    threshold: 0.4
  tags:
    min: 100
    max: 300
store:
  driver: sqlite
  dsn: file:results.db
upload:
  url: https://timing.example/upload
  timeout: 30s
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	l := NewIsolatedLoader()
	cfg, err := l.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.GetConfigFileUsed())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "car", cfg.Category)
	assert.Equal(t, "/srv/photos", cfg.Watch.Dir)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Interval)
	assert.Equal(t, 6, cfg.Pipeline.Workers)
	assert.InDelta(t, 0.4, cfg.Pipeline.Detector.Threshold, 1e-6)
	assert.Equal(t, 100, cfg.Pipeline.Tags.Min)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, 30*time.Second, cfg.Upload.Timeout)
	assert.Equal(t, 9090, cfg.Server.Port)
	// untouched keys keep their defaults
	assert.Equal(t, "AI", cfg.Upload.User)
	assert.Equal(t, DefaultConfig().Pipeline.OCR, cfg.Pipeline.OCR)
}

func TestLoadWithFile_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := NewIsolatedLoader().LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("pipeline:\n  workers: 42\n"), 0o600))
	_, err = NewIsolatedLoader().LoadWithFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	garbled := filepath.Join(t.TempDir(), "garbled.yaml")
	require.NoError(t, os.WriteFile(garbled, []byte("watch: [unclosed\n"), 0o600))
	_, err = NewIsolatedLoader().LoadWithFile(garbled)
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BIBWATCH_PIPELINE_WORKERS", "3")
	t.Setenv("BIBWATCH_WATCH_INTERVAL", "5s")
	t.Setenv("BIBWATCH_UPLOAD_PASSWORD", "hunter2")
	t.Setenv("BIBWATCH_NOTIFY_TELEGRAM_CHAT_ID", "-1001")

	cfg, err := NewIsolatedLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.Equal(t, 5*time.Second, cfg.Watch.Interval)
	assert.Equal(t, "hunter2", cfg.Upload.Password)
	assert.Equal(t, int64(-1001), cfg.Notify.TelegramChatID)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Cleanup(func() {
		_ = os.Unsetenv("BIBWATCH_UPLOAD_URL")
		_ = os.Unsetenv("BIBWATCH_CATEGORY")
	})
	t.Setenv("BIBWATCH_CATEGORY", "finish")

	env := "BIBWATCH_UPLOAD_URL=https://from.dotenv/upload\nBIBWATCH_CATEGORY=car\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, DotEnvFile), []byte(env), 0o600))

	cfg, err := NewIsolatedLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "https://from.dotenv/upload", cfg.Upload.URL)
	assert.Equal(t, "finish", cfg.Category, "process environment wins over .env")
}

func TestLoadWithoutValidation(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BIBWATCH_LOG_LEVEL", "chatty")

	cfg, err := NewIsolatedLoader().LoadWithoutValidation()
	require.NoError(t, err)
	assert.Equal(t, "chatty", cfg.LogLevel)

	_, err = NewIsolatedLoader().Load()
	assert.Error(t, err)
}

func TestGenerateDefaultConfigFile_RoundTrips(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := NewIsolatedLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestGetConfigSearchPaths(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join(xdg, "bibwatch"))
	assert.Equal(t, "/etc/bibwatch", paths[len(paths)-1])
}
