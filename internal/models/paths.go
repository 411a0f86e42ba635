// Package models locates model files on disk.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultModelsDir is searched below the project root.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "BIBWATCH_MODELS_DIR"

// TypeDetection is the subdirectory holding text detection models.
const TypeDetection = "detection"

// DetectionModel is the default detection model file name.
const DetectionModel = "det.onnx"

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root (go.mod not found)")
		}
		dir = parent
	}
}

// GetModelsDir returns the models directory.
// Priority: 1. modelsDir, 2. BIBWATCH_MODELS_DIR, 3. project root + models, 4. ./models.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if env := os.Getenv(EnvModelsDir); env != "" {
		return env
	}
	if root, err := findProjectRoot(); err == nil {
		return filepath.Join(root, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath returns path when it exists. Otherwise a relative path is
// looked up by base name in the models directory, first below detection/
// and then flat. When nothing matches path is returned unchanged so the
// caller reports the configured name.
func ResolveModelPath(path string) string {
	if path == "" || exists(path) || filepath.IsAbs(path) {
		return path
	}
	dir := GetModelsDir("")
	name := filepath.Base(path)
	for _, candidate := range []string{
		filepath.Join(dir, TypeDetection, name),
		filepath.Join(dir, name),
	} {
		if exists(candidate) {
			return candidate
		}
	}
	return path
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	info, err := os.Stat(modelPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("model path is a directory: %s", modelPath)
	}
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
