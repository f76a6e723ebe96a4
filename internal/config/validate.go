package config

import (
	"errors"
	"fmt"
	"net"
)

var validLogLevels = map[string]bool{
	"off": true, "error": true, "warn": true,
	"info": true, "debug": true, "trace": true,
}

// Validate checks all configuration values and returns all errors found,
// accumulating rather than stopping at the first so a user can fix every
// problem in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: unrecognized value %q", cfg.LogLevel))
	}

	if cfg.FileHandler.StorageDirectory == "" {
		errs = append(errs, errors.New("file_handler_config.storage_directory: must not be empty"))
	}

	if cfg.TCP.Addr == "" {
		errs = append(errs, errors.New("tcp_config.addr: must not be empty"))
	} else if _, _, err := net.SplitHostPort(cfg.TCP.Addr); err != nil {
		errs = append(errs, fmt.Errorf("tcp_config.addr: %w", err))
	}

	if cfg.DB.Driver == "" {
		errs = append(errs, errors.New("db_config.driver: must not be empty"))
	}

	if cfg.DB.DSN == "" {
		errs = append(errs, errors.New("db_config.dsn: must not be empty"))
	}

	if cfg.DB.MaxOpenConns <= 0 {
		errs = append(errs, fmt.Errorf("db_config.max_open_conns: must be positive, got %d", cfg.DB.MaxOpenConns))
	}

	if cfg.SyncDownPacingMS < 0 {
		errs = append(errs, fmt.Errorf("sync_down_pacing_ms: must not be negative, got %d", cfg.SyncDownPacingMS))
	}

	return errors.Join(errs...)
}
