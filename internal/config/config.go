// Package config defines the top-level configuration for the reality oracle
// node and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by REALITYARB_* environment variables.
type Config struct {
	Operator   OperatorConfig   `toml:"operator"`
	Realitio   RealitioConfig   `toml:"realitio"`
	Arbitrator ArbitratorConfig `toml:"arbitrator"`
	Augur      AugurConfig      `toml:"augur"`
	Genesis    GenesisConfig    `toml:"genesis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// OperatorConfig holds the key that deploys the contracts and signs published
// events. With neither field set the node generates a throwaway key.
type OperatorConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// RealitioConfig holds oracle parameters.
type RealitioConfig struct {
	BondMultiplier         uint64 `toml:"bond_multiplier"`
	CommitmentTimeoutRatio uint32 `toml:"commitment_timeout_ratio"`
}

// ArbitratorConfig holds the market-backed arbitrator parameters.
type ArbitratorConfig struct {
	TemplateID uint64 `toml:"template_id"`
	DisputeFee amount `toml:"dispute_fee"`
}

// AugurConfig holds the simulated market engine's bond schedule.
type AugurConfig struct {
	ValidityBond          amount   `toml:"validity_bond"`
	NoShowBond            amount   `toml:"no_show_bond"`
	DesignatedReportStake amount   `toml:"designated_report_stake"`
	NumTicks              uint64   `toml:"num_ticks"`
	DisputeWindow         duration `toml:"dispute_window"`
}

// GenesisConfig seeds the in-process chain.
type GenesisConfig struct {
	// Clock is "system" (wall clock) or "manual" (advanced through the API).
	Clock string `toml:"clock"`
	// StartTime is the manual clock's initial epoch second; 0 means now.
	StartTime      int64            `toml:"start_time"`
	OperatorNative amount           `toml:"operator_native"`
	OperatorREP    amount           `toml:"operator_rep"`
	BridgeREP      amount           `toml:"bridge_rep"`
	Accounts       []GenesisAccount `toml:"accounts"`
}

// GenesisAccount is one pre-funded account.
type GenesisAccount struct {
	Address string `toml:"address"`
	Native  amount `toml:"native"`
	REP     amount `toml:"rep"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool     `toml:"enabled"`
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	StreamMaxLen int      `toml:"stream_max_len"`
	LockTTL      duration `toml:"lock_ttl"`
	// LockWait is how long a call waits for another replica's question lock.
	LockWait     duration `toml:"lock_wait"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// amount is a uint256 decoded from a decimal or 0x-prefixed hex string, so
// wei values beyond int64 survive TOML.
type amount struct {
	uint256.Int
}

func newAmount(v uint64) amount {
	return amount{Int: *uint256.NewInt(v)}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *amount) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return a.Int.SetFromHex(s)
	}
	return a.Int.SetFromDecimal(s)
}

// MarshalText implements encoding.TextMarshaler.
func (a amount) MarshalText() ([]byte, error) {
	return []byte(a.Int.Dec()), nil
}

// Value returns a copy of the amount.
func (a amount) Value() *uint256.Int {
	return a.Int.Clone()
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// PublicReads serves GET requests without the API key.
	PublicReads bool `toml:"public_reads"`
	// RateLimit is the per-client request budget per minute; 0 disables it.
	// Needs Redis.
	RateLimit int `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Realitio: RealitioConfig{
			BondMultiplier:         2,
			CommitmentTimeoutRatio: 8,
		},
		Arbitrator: ArbitratorConfig{
			TemplateID: 0,
			DisputeFee: newAmount(1_000_000_000_000_000_000),
		},
		Augur: AugurConfig{
			ValidityBond:          newAmount(10_000_000_000_000_000),
			NoShowBond:            newAmount(10_000_000_000_000_000),
			DesignatedReportStake: newAmount(10_000_000_000_000_000),
			NumTicks:              10000,
			DisputeWindow:         duration{7 * 24 * time.Hour},
		},
		Genesis: GenesisConfig{
			Clock:     "manual",
			BridgeREP: newAmount(1_000_000_000_000_000_000),
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     20,
			MaxRetries:   3,
			TLSEnabled:   false,
			StreamMaxLen: 10000,
			LockTTL:      duration{10 * time.Second},
			LockWait:     duration{2 * time.Second},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "realityarb-history",
			Prefix:         "history",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"LogNotifyOfArbitrationRequest", "LogMarketCreated", "LogAnswerReported"},
		},
		Mode:     "node",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"node":    true,
	"monitor": true,
	"demo":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: node, monitor, demo)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Operator
	if c.Operator.EncryptedKeyPath != "" && c.Operator.KeyPassword == "" {
		errs = append(errs, "operator: key_password is required when encrypted_key_path is set")
	}

	// Realitio
	if c.Realitio.BondMultiplier < 1 {
		errs = append(errs, "realitio: bond_multiplier must be >= 1")
	}
	if c.Realitio.CommitmentTimeoutRatio < 1 {
		errs = append(errs, "realitio: commitment_timeout_ratio must be >= 1")
	}

	// Arbitrator
	if c.Arbitrator.DisputeFee.IsZero() {
		errs = append(errs, "arbitrator: dispute_fee must be > 0")
	}

	// Augur
	if c.Augur.NumTicks < 2 || c.Augur.NumTicks%2 != 0 {
		errs = append(errs, fmt.Sprintf("augur: num_ticks must be even and >= 2, got %d", c.Augur.NumTicks))
	}
	if c.Augur.DisputeWindow.Duration < time.Second {
		errs = append(errs, "augur: dispute_window must be at least 1s")
	}

	// Genesis
	switch c.Genesis.Clock {
	case "system", "manual":
	default:
		errs = append(errs, fmt.Sprintf("genesis: clock must be system or manual, got %q", c.Genesis.Clock))
	}
	if c.Genesis.StartTime < 0 || c.Genesis.StartTime > int64(^uint32(0)) {
		errs = append(errs, "genesis: start_time must fit in uint32 epoch seconds")
	}
	for i, acct := range c.Genesis.Accounts {
		if !common.IsHexAddress(acct.Address) {
			errs = append(errs, fmt.Sprintf("genesis: accounts[%d]: invalid address %q", i, acct.Address))
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled || c.Mode == "monitor" {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}
	if c.Mode == "monitor" && !c.Redis.Enabled {
		errs = append(errs, "redis: must be enabled for monitor mode")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && !c.Redis.Enabled {
			errs = append(errs, "server: rate_limit needs redis.enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
