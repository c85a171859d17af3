package main

import (
	"context"
	"fmt"
	"log"

	"github.com/cimillas/checkin-pay/internal/config"
	"github.com/cimillas/checkin-pay/internal/storage"
	"github.com/cimillas/checkin-pay/internal/storage/boltdb"
	"github.com/cimillas/checkin-pay/internal/storage/memory"
	"github.com/cimillas/checkin-pay/internal/storage/postgres"
	transporthttp "github.com/cimillas/checkin-pay/internal/transport/http"
	"github.com/cimillas/checkin-pay/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

// openedStore is a store plus whatever it takes to check and release it.
type openedStore struct {
	storage.Store
	health transporthttp.HealthCheck
	close  func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (*openedStore, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Printf("WARN: memory store selected, state is lost on restart")
		return &openedStore{Store: memory.New(), close: func() {}}, nil

	case config.DriverBolt:
		s, err := boltdb.Open(cfg.Store.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt store %s: %w", cfg.Store.BoltPath, err)
		}
		return &openedStore{
			Store: s,
			close: func() {
				if err := s.Close(); err != nil {
					logger.Printf("close bolt store: %v", err)
				}
			},
		}, nil

	case config.DriverPostgres:
		pool, err := openPool(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		ran, err := migrations.Apply(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		for _, name := range ran {
			logger.Printf("applied migration %s", name)
		}
		kv := postgres.NewKVStore(pool)
		return &openedStore{Store: kv, health: kv.Ping, close: pool.Close}, nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownStoreDriver, cfg.Store.Driver)
}

func openPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}
