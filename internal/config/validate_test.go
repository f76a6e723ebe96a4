package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.FileHandler.StorageDirectory = "/srv/hcs/storage"

	return cfg
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidate_UnknownLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "verbose"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidate_EmptyStorageDirectory(t *testing.T) {
	cfg := validConfig()
	cfg.FileHandler.StorageDirectory = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage_directory")
}

func TestValidate_BadTCPAddr(t *testing.T) {
	cfg := validConfig()
	cfg.TCP.Addr = "not-an-addr"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tcp_config.addr")
}

func TestValidate_AccumulatesMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "verbose"
	cfg.TCP.Addr = ""
	cfg.FileHandler.StorageDirectory = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "tcp_config.addr")
	assert.Contains(t, err.Error(), "storage_directory")
}

func TestValidate_NonPositiveMaxOpenConns(t *testing.T) {
	cfg := validConfig()
	cfg.DB.MaxOpenConns = 0
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_open_conns")
}
