package backup

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"arb_bot/internal/modules/backup/service"
	"arb_bot/internal/modules/config"
	"arb_bot/pkg/db"
	"arb_bot/pkg/logger"
)

// Module wires the backup store: postgres primary, optionally wrapped
// with a Redis read-through cache; in-memory when no DSN is configured
// (dry runs).
func Module() fx.Option {
	return fx.Module("backup",
		fx.Provide(
			func(cfg *config.Config, lc fx.Lifecycle) (service.Store, error) {
				if cfg.DB == "" {
					logger.Info("backup: no db_dsn configured, using in-memory store")
					return service.NewMemoryStore(), nil
				}
				ctx := context.Background()

				pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DB})
				if err != nil {
					return nil, err
				}
				if err := pool.Ping(ctx); err != nil {
					return nil, err
				}
				tx := db.NewPgTxManager(pool)
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						tx.Close()
						return nil
					},
				})

				pg := service.NewPgStore(tx)
				if err := pg.EnsureSchema(ctx); err != nil {
					return nil, err
				}

				if cfg.Redis.Addr == "" {
					return pg, nil
				}
				rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
				return service.NewCachedStore(pg, rdb, cfg.Redis.TTL), nil
			},
		),
	)
}
