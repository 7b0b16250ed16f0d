package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 3*time.Second, cfg.Compress.PollInterval)
	assert.Equal(t, 2, cfg.Compress.ProgressStep)
	assert.Equal(t, "ffmpeg", cfg.Compress.FFmpeg.BinaryPath)
	assert.Equal(t, "compress.requests", cfg.Kafka.Topics.CompressRequests)
	assert.Contains(t, cfg.Compress.ThumbnailExts, "mkv")
}

func TestLoadNormalizesExtensionsAndKeys(t *testing.T) {
	path := writeConfig(t, `
minio:
  access_key: ak
  secret_key: sk
compress:
  allowed_extensions: [".MP4", " mkv ", ""]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"mp4", "mkv"}, cfg.Compress.AllowedExtensions)
	assert.Equal(t, "ak", cfg.Minio.AccessKeyID)
	assert.Equal(t, "sk", cfg.Minio.SecretAccessKey)
}

func TestLoadRejectsRedisBackendWithoutRedis(t *testing.T) {
	path := writeConfig(t, "session:\n  backend: redis\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, "session:\n  backend: etcd\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/tmp/compress", cfg.Compress.WorkRoot)
	assert.Equal(t, "/tmp/compress-media", cfg.Compress.MediaRoot)
	assert.Equal(t, 5*time.Second, cfg.Compress.FFmpeg.KillGrace)
	assert.NoError(t, cfg.Validate())
}
