package brokerage

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"arb_bot/internal/modules/brokerage/service"
	"arb_bot/internal/modules/brokerage/service/ws"
	"arb_bot/internal/modules/config"
)

// Module wires the order router, the multi-account aggregator and the
// configured brokerage connections. Connecting is part of app start and
// is all-or-nothing.
func Module() fx.Option {
	return fx.Module("brokerage",
		fx.Provide(
			func(cfg *config.Config) (service.OrderRouter, error) {
				return service.NewRouter(cfg.Router.Policy, cfg.Router.Routes, cfg.Router.Default)
			},
			func(cfg *config.Config) (*service.Aggregator, error) {
				agg := service.NewAggregator()
				for _, acc := range cfg.Accounts {
					conn, err := buildConnection(acc)
					if err != nil {
						return nil, err
					}
					if err := agg.Register(conn); err != nil {
						return nil, err
					}
				}
				return agg, nil
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, agg *service.Aggregator) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					// connect may block on network I/O; fx runs hooks off
					// the evaluation path
					return agg.ConnectAll(ctx)
				},
				OnStop: func(ctx context.Context) error {
					agg.DisconnectAll(ctx)
					return nil
				},
			})
		}),
	)
}

func buildConnection(acc config.AccountConfig) (service.Connection, error) {
	switch acc.Kind {
	case "ws":
		return ws.NewClient(ws.Config{
			Name:       acc.Name,
			URL:        acc.URL,
			APIKey:     acc.APIKey,
			APISecret:  acc.APISecret,
			Passphrase: acc.Passphrase,
		}), nil
	case "paper", "":
		return service.NewPaperConnection(acc.Name), nil
	default:
		return nil, fmt.Errorf("brokerage: unknown account kind %q for %s", acc.Kind, acc.Name)
	}
}
