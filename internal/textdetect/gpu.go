package textdetect

import (
	"fmt"
	"strconv"

	"github.com/yalue/onnxruntime_go"
)

// GPUConfig enables the CUDA execution provider.
type GPUConfig struct {
	Enabled  bool
	DeviceID int
	// MemLimit caps the CUDA arena in bytes; 0 leaves it unlimited.
	MemLimit uint64
}

func (g GPUConfig) providerSettings() map[string]string {
	s := map[string]string{
		"device_id":                 strconv.Itoa(g.DeviceID),
		"arena_extend_strategy":     "kNextPowerOfTwo",
		"cudnn_conv_algo_search":    "DEFAULT",
		"do_copy_in_default_stream": "1",
	}
	if g.MemLimit > 0 {
		s["gpu_mem_limit"] = strconv.FormatUint(g.MemLimit, 10)
	}
	return s
}

// appendCUDA adds the CUDA provider in front of the CPU provider.
func appendCUDA(opts *onnxruntime_go.SessionOptions, g GPUConfig) error {
	if g.DeviceID < 0 {
		return fmt.Errorf("device id must be non-negative, got %d", g.DeviceID)
	}
	cuda, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("create CUDA provider options: %w", err)
	}
	defer func() { _ = cuda.Destroy() }()

	if err := cuda.Update(g.providerSettings()); err != nil {
		return fmt.Errorf("update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		return fmt.Errorf("append CUDA provider: %w", err)
	}
	return nil
}
