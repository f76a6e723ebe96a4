package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "Config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
log_level = "debug"

[db_config]
driver = "sqlite"
dsn = "test.db"
max_open_conns = 8

[tcp_config]
addr = "127.0.0.1:9001"

[file_handler_config]
storage_directory = "/srv/hcs/storage"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "test.db", cfg.DB.DSN)
	assert.Equal(t, 8, cfg.DB.MaxOpenConns)
	assert.Equal(t, "127.0.0.1:9001", cfg.TCP.Addr)
	assert.Equal(t, "/srv/hcs/storage", cfg.FileHandler.StorageDirectory)
}

func TestLoad_DefaultsFillUnsetSections(t *testing.T) {
	path := writeTestConfig(t, `
[file_handler_config]
storage_directory = "/srv/hcs/storage"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultLogLevel, cfg.LogLevel)
	assert.Equal(t, defaultDBDriver, cfg.DB.Driver)
	assert.Equal(t, defaultTCPAddr, cfg.TCP.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTestConfig(t, `not = [valid toml`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_FailsValidation(t *testing.T) {
	path := writeTestConfig(t, `
log_level = "verbose"

[file_handler_config]
storage_directory = "/srv/hcs/storage"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}
