// Package config implements TOML configuration loading and validation for
// the hcs-server daemon.
package config

import "log/slog"

// Config is the top-level configuration structure, decoded from Config.toml.
type Config struct {
	LogLevel         string            `toml:"log_level"`
	DB               DBConfig          `toml:"db_config"`
	TCP              TCPConfig         `toml:"tcp_config"`
	FileHandler      FileHandlerConfig `toml:"file_handler_config"`
	SyncDownPacingMS int               `toml:"sync_down_pacing_ms"`
}

// DBConfig is passed opaquely to the change-log store driver; the core
// never inspects it beyond what's needed to open a connection pool.
type DBConfig struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
}

// TCPConfig holds the listen address for the sync protocol.
type TCPConfig struct {
	Addr string `toml:"addr"`
}

// FileHandlerConfig roots the content store.
type FileHandlerConfig struct {
	StorageDirectory string `toml:"storage_directory"`
}

// traceLevel sits below slog.LevelDebug since slog has no built-in trace tier.
const traceLevel = slog.LevelDebug - 4

// offLevel is set high enough above slog.LevelError that "off" never fires.
const offLevel = slog.Level(1 << 20)

// SlogLevel maps the config's log_level string onto an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "off":
		return offLevel
	case "error":
		return slog.LevelError
	case "warn":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "trace":
		return traceLevel
	default:
		return slog.LevelInfo
	}
}
