package runner

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"

	"arb_bot/internal/grid"
	"arb_bot/internal/modules/brokerage/service"
	"arb_bot/internal/modules/config"
	"arb_bot/internal/notify"
	"arb_bot/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(cfg *config.Config) (notify.Notifier, error) {
				if cfg.Telegram.Token == "" {
					return notify.LogNotifier{}, nil
				}
				return notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
			},
			func(cfg *config.Config, agg *service.Aggregator, router service.OrderRouter, book *grid.Book) (*Executor, error) {
				equity, err := decimal.NewFromString(cfg.Equity)
				if err != nil {
					return nil, err
				}
				return NewExecutor(agg, router, book, equity), nil
			},
			NewRunner,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, book *grid.Book, r *Runner) error {
			if err := RegisterPairs(cfg, book); err != nil {
				return err
			}

			loopCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					r.Restore(ctx)
					go r.ConsumeEvents(loopCtx)
					go r.Run(loopCtx)
					logger.Info("runner started: %d pairs, eval every %s", len(cfg.Pairs), cfg.EvalEvery)
					return nil
				},
				OnStop: func(ctx context.Context) error {
					cancel()
					// final snapshot so a clean shutdown never loses state
					r.Backup(ctx, time.Now())
					return nil
				},
			})
			return nil
		}),
	)
}
