// Package config holds every knob enumerated in spec.md §6, loaded via
// spf13/viper the way internal/interface/cli/root.go and config.go do:
// a YAML file plus SYNCKIT_-prefixed environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved runtime configuration.
type Config struct {
	MaxConnectionsPerIP  int           `mapstructure:"max_connections_per_ip"`
	MaxMessagesPerMinute int           `mapstructure:"max_messages_per_minute"`
	MaxMessageBytes      int           `mapstructure:"max_message_bytes"`
	MaxDocumentIDLength  int           `mapstructure:"max_document_id_length"`
	BatchWindow          time.Duration `mapstructure:"-"`
	BatchWindowMS        int           `mapstructure:"batch_window_ms"`
	HeartbeatInterval     time.Duration `mapstructure:"-"`
	HeartbeatIntervalMS   int           `mapstructure:"heartbeat_interval_ms"`
	HeartbeatTimeout      time.Duration `mapstructure:"-"`
	HeartbeatTimeoutMS    int           `mapstructure:"heartbeat_timeout_ms"`
	AwarenessTTL          time.Duration `mapstructure:"-"`
	AwarenessTTLMS        int           `mapstructure:"awareness_ttl_ms"`
	OutboundQueueDepth    int           `mapstructure:"outbound_queue_depth"`

	ListenAddr   string `mapstructure:"listen_addr"`
	StorageKind  string `mapstructure:"storage_kind"` // "badger", "postgres", or "" (memory only)
	BadgerDir    string `mapstructure:"badger_dir"`
	PostgresDSN  string `mapstructure:"postgres_dsn"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	LibP2PListen string `mapstructure:"libp2p_listen"`
}

// Defaults mirrors §6's enumerated configuration defaults and the
// teacher's getOrDefault pattern (internal/interface/cli/config.go).
func Defaults() Config {
	return Config{
		MaxConnectionsPerIP:  50,
		MaxMessagesPerMinute: 500,
		MaxMessageBytes:      2_000_000,
		MaxDocumentIDLength:  256,
		BatchWindowMS:        50,
		HeartbeatIntervalMS:  30_000,
		HeartbeatTimeoutMS:   60_000,
		AwarenessTTLMS:       30_000,
		OutboundQueueDepth:   1024,
		ListenAddr:           ":8080",
		StorageKind:          "",
		BadgerDir:            "./data/badger",
	}
}

// Load reads config from viper (already initialized by the CLI's
// initConfig), falling back to Defaults() for anything unset.
func Load(v *viper.Viper) (Config, error) {
	cfg := Defaults()
	v.SetDefault("max_connections_per_ip", cfg.MaxConnectionsPerIP)
	v.SetDefault("max_messages_per_minute", cfg.MaxMessagesPerMinute)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("max_document_id_length", cfg.MaxDocumentIDLength)
	v.SetDefault("batch_window_ms", cfg.BatchWindowMS)
	v.SetDefault("heartbeat_interval_ms", cfg.HeartbeatIntervalMS)
	v.SetDefault("heartbeat_timeout_ms", cfg.HeartbeatTimeoutMS)
	v.SetDefault("awareness_ttl_ms", cfg.AwarenessTTLMS)
	v.SetDefault("outbound_queue_depth", cfg.OutboundQueueDepth)
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("storage_kind", cfg.StorageKind)
	v.SetDefault("badger_dir", cfg.BadgerDir)

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: failed to unmarshal: %w", err)
	}

	cfg.BatchWindow = time.Duration(cfg.BatchWindowMS) * time.Millisecond
	cfg.HeartbeatInterval = time.Duration(cfg.HeartbeatIntervalMS) * time.Millisecond
	cfg.HeartbeatTimeout = time.Duration(cfg.HeartbeatTimeoutMS) * time.Millisecond
	cfg.AwarenessTTL = time.Duration(cfg.AwarenessTTLMS) * time.Millisecond

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = os.Getenv("SYNCKIT_JWT_SECRET")
	}
	return cfg, nil
}
