package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
debug: true
control:
  addr: 0.0.0.0:9400
handshake:
  timeout: 10s
  tokenheader: X-Custom-Token
close:
  timeout: 2s
servers:
  - id: coco
    endpoint: https://coco.example.com
    token: secret
  - id: local
    endpoint: http://localhost:9200
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wslink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeFile(t, sample), nil)
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "0.0.0.0:9400", cfg.Control.Addr)
	assert.Equal(t, 10*time.Second, cfg.Handshake.Timeout)
	assert.Equal(t, "X-Custom-Token", cfg.Handshake.TokenHeader)
	assert.Equal(t, "wslink", cfg.Handshake.UserAgent, "defaults survive partial sections")
	assert.Equal(t, 2*time.Second, cfg.Close.Timeout)
	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "coco", cfg.Servers[0].ID)
	assert.Equal(t, "secret", cfg.Servers[0].Token)
	assert.Empty(t, cfg.Servers[1].Token)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Control.Addr, cfg.Control.Addr)
}

func TestLoadEnvAndOverrides(t *testing.T) {
	t.Setenv("WSLINK_REDIS_ADDR", "redis:6379")
	t.Setenv("WSLINK_CONTROL_ADDR", "from-env:1")
	cfg, err := Load(writeFile(t, sample), map[string]any{"control.addr": "from-flag:2"})
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "from-flag:2", cfg.Control.Addr)
}

func TestValidate(t *testing.T) {
	_, err := Load(writeFile(t, "servers:\n  - id: a\n  - id: a\n    endpoint: http://a\n"), nil)
	assert.Error(t, err)

	_, err = Load(writeFile(t, "servers:\n  - id: a\n    endpoint: http://a\n  - id: a\n    endpoint: http://b\n"), nil)
	assert.ErrorContains(t, err, "duplicate")

	_, err = Load(writeFile(t, "redis:\n  publish: true\n"), nil)
	assert.ErrorContains(t, err, "redis.publish")

	_, err = Load(writeFile(t, "handshake:\n  timeout: 0s\n"), nil)
	assert.Error(t, err)
}
