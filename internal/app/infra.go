package app

import (
	"context"
	"errors"

	"userdir/internal/config"
	"userdir/internal/db"
	"userdir/internal/handshake"
	"userdir/internal/logger"
	"userdir/internal/redis"
	"userdir/internal/store"
)

type Infra struct {
	Users      store.Store
	Handshakes handshake.Store

	DB    *db.DB
	Redis *redis.Client
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		conn, err := db.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, conn.DB); err != nil {
			_ = conn.Close()
			return nil, err
		}
		infra.DB = conn
		infra.Users = db.NewPostgresStore(conn)
		logger.Info("database ready")
	default:
		infra.Users = store.NewMemory()
		logger.Warn("using in-memory user store, data is lost on restart")
	}

	if cfg.RedisAddr != "" {
		client, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			_ = infra.Close()
			return nil, err
		}
		infra.Redis = client
		infra.Handshakes = handshake.NewRedisStore(client)
		logger.Info("redis ready")
	} else {
		infra.Handshakes = handshake.NewMemoryStore()
	}

	return infra, nil
}

func (i *Infra) Close() error {
	var errs []error
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.DB != nil {
		errs = append(errs, i.DB.Close())
	}
	return errors.Join(errs...)
}

// Migrate applies the database migrations and exits without serving.
func Migrate(ctx context.Context, cfg config.Config) error {
	if cfg.DatabaseDriver != config.DriverPostgres {
		return errors.New("migrate: DATABASE_DRIVER is not postgres")
	}

	conn, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn.DB); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}
