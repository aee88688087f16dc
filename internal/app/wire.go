package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	s3blob "github.com/alanyoungcy/realityarb/internal/blob/s3"
	"github.com/alanyoungcy/realityarb/internal/cache/redis"
	"github.com/alanyoungcy/realityarb/internal/config"
	"github.com/alanyoungcy/realityarb/internal/crypto"
	"github.com/alanyoungcy/realityarb/internal/domain"
	"github.com/alanyoungcy/realityarb/internal/notify"
	"github.com/alanyoungcy/realityarb/internal/store/postgres"
)

// Dependencies bundles the infrastructure the modes run on. Every store,
// cache and sink is optional; a nil field means the backend is disabled.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Operator signs published events and derives contract addresses.
	Signer *crypto.Signer

	// RunID tags the rows this run writes to run-scoped stores.
	RunID string

	// Stores
	AnswerStore      domain.AnswerStore
	QuestionStore    domain.QuestionStore
	ArbitrationStore domain.ArbitrationStore
	AuditStore       domain.AuditStore

	// Caches
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	HistoryArchive domain.HistoryArchive

	// Notifications; nil when no sender is configured.
	Notifier *notify.Notifier

	// Health holds a reachability probe per enabled backend.
	Health map[string]domain.HealthChecker
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		RunID:  uuid.NewString(),
		Health: map[string]domain.HealthChecker{},
	}

	// --- Operator key ---
	signer, err := crypto.LoadSigner(crypto.KeyConfig{
		RawPrivateKey:    cfg.Operator.PrivateKey,
		EncryptedKeyPath: cfg.Operator.EncryptedKeyPath,
		KeyPassword:      cfg.Operator.KeyPassword,
	})
	if errors.Is(err, crypto.ErrNoKeySource) {
		signer, err = crypto.GenerateSigner()
		if err == nil {
			logger.WarnContext(ctx, "no operator key configured, using a throwaway key",
				slog.String("operator", signer.Address().Hex()),
			)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("wire: operator key: %w", err)
	}
	deps.Signer = signer

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)
		deps.Health["postgres"] = pgClient

		// Run migrations if enabled.
		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		logger.InfoContext(ctx, "answer log scoped to run", slog.String("run_id", deps.RunID))
		pool := pgClient.Pool()
		deps.AnswerStore = postgres.NewAnswerStore(pool, deps.RunID)
		deps.QuestionStore = postgres.NewQuestionStore(pool)
		deps.ArbitrationStore = postgres.NewArbitrationStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Health["redis"] = redisClient

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient, cfg.Redis.LockWait.Duration)
		deps.SignalBus = redis.NewSignalBus(redisClient, int64(cfg.Redis.StreamMaxLen))
	}

	// --- S3 history archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		if err := s3Client.EnsureBucket(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Health["s3"] = s3Client

		deps.HistoryArchive = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.AuditStore,
			cfg.S3.Prefix,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}
