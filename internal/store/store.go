package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dkeye/ucode/internal/config"
	"github.com/dkeye/ucode/internal/core"
)

// Open builds the store selected by cfg.Store.Driver.
// The returned closer releases driver resources and is never nil.
func Open(ctx context.Context, cfg *config.Config) (core.SessionStore, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Store.Driver {
	case "", "memory":
		return NewMemoryStore(), noop, nil
	case "mongo":
		m, err := NewMongoStore(ctx, cfg.Mongo.URL, cfg.Mongo.Database, cfg.Mongo.Collection, cfg.Store.Timeout)
		if err != nil {
			return nil, noop, err
		}
		return m, m.Close, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			ReadTimeout:  cfg.Store.Timeout,
			WriteTimeout: cfg.Store.Timeout,
		})
		pctx, cancel := context.WithTimeout(ctx, cfg.Store.Timeout)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("redis ping: %w", err)
		}
		closer := func(context.Context) error { return client.Close() }
		return NewRedisStore(client, cfg.Redis.LeaseTTL), closer, nil
	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

