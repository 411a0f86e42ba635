package textdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGPUProviderSettings(t *testing.T) {
	s := GPUConfig{Enabled: true, DeviceID: 1}.providerSettings()
	assert.Equal(t, "1", s["device_id"])
	assert.NotContains(t, s, "gpu_mem_limit")

	s = GPUConfig{Enabled: true, MemLimit: 2 << 30}.providerSettings()
	assert.Equal(t, "0", s["device_id"])
	assert.Equal(t, "2147483648", s["gpu_mem_limit"])
}

func TestAppendCUDA_RejectsNegativeDevice(t *testing.T) {
	err := appendCUDA(nil, GPUConfig{Enabled: true, DeviceID: -1})
	assert.ErrorContains(t, err, "non-negative")
}
