package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies REALITYARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
//
// An empty path skips the file and starts from Defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known REALITYARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Operator ──
	setStr(&cfg.Operator.PrivateKey, "REALITYARB_OPERATOR_PRIVATE_KEY")
	setStr(&cfg.Operator.EncryptedKeyPath, "REALITYARB_OPERATOR_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Operator.KeyPassword, "REALITYARB_OPERATOR_KEY_PASSWORD")

	// ── Realitio ──
	setUint64(&cfg.Realitio.BondMultiplier, "REALITYARB_REALITIO_BOND_MULTIPLIER")
	setUint32(&cfg.Realitio.CommitmentTimeoutRatio, "REALITYARB_REALITIO_COMMITMENT_TIMEOUT_RATIO")

	// ── Arbitrator ──
	setUint64(&cfg.Arbitrator.TemplateID, "REALITYARB_ARBITRATOR_TEMPLATE_ID")
	setAmount(&cfg.Arbitrator.DisputeFee, "REALITYARB_ARBITRATOR_DISPUTE_FEE")

	// ── Augur ──
	setAmount(&cfg.Augur.ValidityBond, "REALITYARB_AUGUR_VALIDITY_BOND")
	setAmount(&cfg.Augur.NoShowBond, "REALITYARB_AUGUR_NO_SHOW_BOND")
	setAmount(&cfg.Augur.DesignatedReportStake, "REALITYARB_AUGUR_DESIGNATED_REPORT_STAKE")
	setUint64(&cfg.Augur.NumTicks, "REALITYARB_AUGUR_NUM_TICKS")
	setDuration(&cfg.Augur.DisputeWindow, "REALITYARB_AUGUR_DISPUTE_WINDOW")

	// ── Genesis ──
	setStr(&cfg.Genesis.Clock, "REALITYARB_GENESIS_CLOCK")
	setInt64(&cfg.Genesis.StartTime, "REALITYARB_GENESIS_START_TIME")
	setAmount(&cfg.Genesis.OperatorNative, "REALITYARB_GENESIS_OPERATOR_NATIVE")
	setAmount(&cfg.Genesis.OperatorREP, "REALITYARB_GENESIS_OPERATOR_REP")
	setAmount(&cfg.Genesis.BridgeREP, "REALITYARB_GENESIS_BRIDGE_REP")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "REALITYARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "REALITYARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "REALITYARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "REALITYARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "REALITYARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "REALITYARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "REALITYARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "REALITYARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "REALITYARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "REALITYARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "REALITYARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "REALITYARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "REALITYARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REALITYARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REALITYARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REALITYARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REALITYARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "REALITYARB_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.StreamMaxLen, "REALITYARB_REDIS_STREAM_MAX_LEN")
	setDuration(&cfg.Redis.LockTTL, "REALITYARB_REDIS_LOCK_TTL")
	setDuration(&cfg.Redis.LockWait, "REALITYARB_REDIS_LOCK_WAIT")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "REALITYARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "REALITYARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "REALITYARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "REALITYARB_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "REALITYARB_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "REALITYARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "REALITYARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "REALITYARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "REALITYARB_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "REALITYARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "REALITYARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "REALITYARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "REALITYARB_SERVER_API_KEY")
	setBool(&cfg.Server.PublicReads, "REALITYARB_SERVER_PUBLIC_READS")
	setInt(&cfg.Server.RateLimit, "REALITYARB_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "REALITYARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "REALITYARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "REALITYARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "REALITYARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "REALITYARB_MODE")
	setStr(&cfg.LogLevel, "REALITYARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint32(dst *uint32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setAmount(dst *amount, key string) {
	if v := os.Getenv(key); v != "" {
		var a amount
		if err := a.UnmarshalText([]byte(v)); err == nil {
			*dst = a
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
