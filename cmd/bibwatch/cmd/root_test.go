package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/MeKo-Tech/bibwatch/internal/collector"
	"github.com/MeKo-Tech/bibwatch/internal/config"
	"github.com/MeKo-Tech/bibwatch/internal/pipeline"
	"github.com/MeKo-Tech/bibwatch/internal/result"
	"github.com/MeKo-Tech/bibwatch/internal/version"
)

// isolate runs the test in an empty directory with no reachable config file.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer ResetFlags()
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "bibwatch", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "detect", "export", "config"})
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "bib numbers")
	assert.Contains(t, out, "Available Commands:")
}

func TestRootCommandVersion(t *testing.T) {
	isolate(t)
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)
}

func TestNewLogger_Levels(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()

	l := newLogger(&bytes.Buffer{}, &cfg)
	assert.True(t, l.Enabled(ctx, slog.LevelInfo))
	assert.False(t, l.Enabled(ctx, slog.LevelDebug))

	cfg.LogLevel = "error"
	assert.False(t, newLogger(&bytes.Buffer{}, &cfg).Enabled(ctx, slog.LevelWarn))

	cfg.Verbose = true
	assert.True(t, newLogger(&bytes.Buffer{}, &cfg).Enabled(ctx, slog.LevelDebug))
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	single := filepath.Join(t.TempDir(), "single.jpeg")
	require.NoError(t, os.WriteFile(single, nil, 0o600))

	paths, err := expandPaths([]string{dir, single})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.jpg"), single}, paths)

	_, err = expandPaths([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestPrintDetections(t *testing.T) {
	var buf bytes.Buffer
	found := map[string][]int{"b.jpg": {518, 12}, "a.jpg": {}}
	printDetections(&buf, []string{"a.jpg", "b.jpg", "broken.jpg"}, found,
		pipeline.Stats{Processed: 3, WithNumbers: 1})

	assert.Equal(t, "a.jpg: -\n"+
		"b.jpg: 518,12\n"+
		"1 images could not be processed\n"+
		"Processed 3 images with 1 images where at least 1 bib number was found (33.3%)\n", buf.String())
}

func TestDetect_MissingModelFails(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpg"), nil, 0o600))

	_, err := execute(t, "detect", "--progress=false", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text detector")
}

func TestDetect_InvalidThreads(t *testing.T) {
	dir := isolate(t)
	_, err := execute(t, "detect", "-t", "11", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}

func TestExport(t *testing.T) {
	dir := isolate(t)
	storePath := filepath.Join(dir, "results.txt")
	store, err := collector.NewFileStore(storePath, nil)
	require.NoError(t, err)
	at := time.Date(2024, 5, 18, 9, 30, 12, 0, time.UTC)
	require.NoError(t, store.Save(context.Background(), []result.Snapshot{
		{Identity: "/in/1.jpg", Category: result.CategoryFinish, State: result.StateUploaded, Numbers: []int{518}, CaptureTime: at},
		{Identity: "/in/2.jpg", Category: result.CategoryFinish, State: result.StatePendingManually, CaptureTime: at.Add(time.Second)},
	}))

	outPath := filepath.Join(dir, "out.xlsx")
	out, err := execute(t, "export", "--store", storePath, "-o", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 results")

	f, err := excelize.OpenFile(outPath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "/in/1.jpg", rows[1][0])
}

func TestExport_UnknownState(t *testing.T) {
	dir := isolate(t)
	_, err := execute(t, "export", "--store", filepath.Join(dir, "r.txt"), "--state", "LOST")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown state")
}

// Reads a config file into the global viper instance, so it runs last.
func TestConfigInitAndShow(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote bibwatch.yaml")
	assert.FileExists(t, filepath.Join(dir, "bibwatch.yaml"))

	_, err = execute(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	t.Setenv("BIBWATCH_UPLOAD_PASSWORD", "secret")
	out, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# config file:")
	assert.Contains(t, out, "category: finish")
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "secret")
}
