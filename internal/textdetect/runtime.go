package textdetect

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

// LibraryEnv overrides the ONNX Runtime shared library location.
const LibraryEnv = "ONNXRUNTIME_LIB"

var (
	envOnce sync.Once
	envErr  error
)

func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// findLibrary returns the first existing candidate: explicit path, the
// environment override, then common install locations.
func findLibrary(explicit string) (string, error) {
	name, err := libraryName()
	if err != nil {
		return "", err
	}
	candidates := []string{
		explicit,
		os.Getenv(LibraryEnv),
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
		filepath.Join("/opt/onnxruntime/lib", name),
		filepath.Join("onnxruntime", "lib", name),
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", errors.New("ONNX Runtime library not found; set " + LibraryEnv)
}

// initEnvironment loads the shared library once per process.
func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if onnxruntime_go.IsInitialized() {
			return
		}
		path, err := findLibrary(libraryPath)
		if err != nil {
			envErr = err
			return
		}
		onnxruntime_go.SetSharedLibraryPath(path)
		if err := onnxruntime_go.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("initialize ONNX Runtime: %w", err)
		}
	})
	return envErr
}
