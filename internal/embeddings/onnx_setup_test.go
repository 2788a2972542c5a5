//go:build cgo

package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlatformArchive(t *testing.T) {
	arch, err := getPlatformArchive("linux", "amd64")
	require.NoError(t, err)
	assert.Equal(t, "linux-x64", arch)

	arch, err = getPlatformArchive("darwin", "arm64")
	require.NoError(t, err)
	assert.Equal(t, "osx-arm64", arch)

	_, err = getPlatformArchive("windows", "amd64")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)

	_, err = getPlatformArchive("linux", "riscv64")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestGetLibraryName(t *testing.T) {
	assert.Equal(t, "libonnxruntime.so", getLibraryName("linux"))
	assert.Equal(t, "libonnxruntime.dylib", getLibraryName("darwin"))
	assert.Equal(t, "libonnxruntime.so", getLibraryName("plan9"))
}

func TestBuildDownloadURL(t *testing.T) {
	url := buildDownloadURL("1.23.0", "linux-x64")
	assert.Equal(t, "https://github.com/microsoft/onnxruntime/releases/download/v1.23.0/onnxruntime-linux-x64-1.23.0.tgz", url)
}

func TestGetONNXLibraryPath_EnvOverride(t *testing.T) {
	t.Setenv("ONNX_PATH", "/tmp/libonnxruntime.so")
	assert.Equal(t, "/tmp/libonnxruntime.so", GetONNXLibraryPath())
}
