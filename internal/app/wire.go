package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/aochii2021/rss-sample-sub000/internal/blob/s3"
	"github.com/aochii2021/rss-sample-sub000/internal/cache/redis"
	"github.com/aochii2021/rss-sample-sub000/internal/config"
	"github.com/aochii2021/rss-sample-sub000/internal/domain"
	"github.com/aochii2021/rss-sample-sub000/internal/levels"
	"github.com/aochii2021/rss-sample-sub000/internal/loader"
	"github.com/aochii2021/rss-sample-sub000/internal/session"
	"github.com/aochii2021/rss-sample-sub000/internal/store/postgres"
)

// Dependencies bundles everything a run needs. Ledger, LevelCache, and
// Archiver are nil when the corresponding backend is disabled; the run
// degrades to local CSV/JSON output only.
type Dependencies struct {
	Loader   *loader.Loader
	Detector *levels.Detector
	Clock    *session.Clock

	Ledger     domain.LedgerStore
	LevelCache domain.LevelCache
	Archiver   *s3blob.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	ld, err := loader.New(cfg.Data, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: loader: %w", err)
	}
	clock, err := session.NewClock(cfg.Session, ld.Calendar().Location())
	if err != nil {
		return nil, nil, fmt.Errorf("wire: session clock: %w", err)
	}

	deps := &Dependencies{
		Loader:   ld,
		Detector: levels.NewDetector(cfg.Levels, logger),
		Clock:    clock,
	}

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

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Ledger = postgres.NewLedgerStore(pgClient.Pool())
	}

	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		ttl := time.Duration(cfg.Redis.CacheTTLMinutes) * time.Minute
		deps.LevelCache = redis.NewLevelCache(redisClient, ttl)
	}

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, cfg.S3)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
	}

	return deps, cleanup, nil
}
