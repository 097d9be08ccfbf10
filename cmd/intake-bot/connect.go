// cmd/intake-bot/connect.go
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"intake-bot/internal/common/config"
	"intake-bot/internal/common/database"
	apperrors "intake-bot/internal/common/errors"
)

type retrySettings struct {
	Attempts     uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

var defaultRetry = retrySettings{Attempts: 15, InitialDelay: 2 * time.Second, MaxDelay: 30 * time.Second}

// connectWithRetry runs connect with exponential backoff until it succeeds,
// the attempts are spent, or ctx ends.
func connectWithRetry(ctx context.Context, rs retrySettings, log *zap.Logger, name string, connect func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = rs.InitialDelay
	eb.MaxInterval = rs.MaxDelay
	eb.MaxElapsedTime = 0

	attempt := 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, rs.Attempts-1), ctx)
	err := backoff.RetryNotify(func() error {
		attempt++
		return connect(ctx)
	}, b, func(err error, next time.Duration) {
		log.Warn(fmt.Sprintf("%s failed, retrying...", name),
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Uint64("maxRetries", rs.Attempts),
			zap.Duration("nextRetryIn", next),
		)
	})
	if err != nil {
		return fmt.Errorf("%s failed after %d attempts: %w", name, attempt, err)
	}
	log.Info(name + " connected successfully")
	return nil
}

// connectionError tags a failed connect. Running out of ctx deadline is a
// timeout; anything else gets the store's own code.
func connectionError(ctx context.Context, name string, err error, tag func(error) *apperrors.StandardError) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(name, err)
	}
	return tag(err)
}

// stores are the backing services. es is nil when no audit cluster is
// configured.
type stores struct {
	pg    *database.PostgresClient
	redis *database.RedisClient
	es    *database.ElasticsearchClient
}

func (s *stores) Close(log *zap.Logger) {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error("Error closing Redis", zap.Error(err))
		}
	}
	if s.pg != nil {
		if err := s.pg.Close(); err != nil {
			log.Error("Error closing PostgreSQL", zap.Error(err))
		}
	}
}

func connectPostgres(ctx context.Context, cfg config.PostgresConfig, log *zap.Logger) (*database.PostgresClient, error) {
	var pg *database.PostgresClient
	err := connectWithRetry(ctx, defaultRetry, log, "PostgreSQL connection", func(ctx context.Context) error {
		client, err := database.NewPostgres(cfg)
		if err != nil {
			return err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return err
		}
		pg = client
		return nil
	})
	if err != nil {
		return nil, connectionError(ctx, "postgres", err, apperrors.NewDatabaseConnectionFailedError)
	}
	return pg, nil
}

func connectStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	s := &stores{}

	pg, err := connectPostgres(ctx, cfg.Database.Postgres, log)
	if err != nil {
		return nil, err
	}
	s.pg = pg

	err = connectWithRetry(ctx, retrySettings{Attempts: 10, InitialDelay: 2 * time.Second, MaxDelay: 20 * time.Second}, log, "Redis connection", func(ctx context.Context) error {
		client, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return err
		}
		s.redis = client
		return nil
	})
	if err != nil {
		s.Close(log)
		return nil, connectionError(ctx, "redis", err, apperrors.NewDatabaseConnectionFailedError)
	}

	if cfg.Database.Elasticsearch.Enabled() {
		err = connectWithRetry(ctx, defaultRetry, log, "Elasticsearch connection", func(ctx context.Context) error {
			client, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := client.Ping(ctx); err != nil {
				return err
			}
			s.es = client
			return nil
		})
		if err != nil {
			s.Close(log)
			return nil, connectionError(ctx, "elasticsearch", err, apperrors.NewElasticsearchConnectionFailedError)
		}
	}

	return s, nil
}
