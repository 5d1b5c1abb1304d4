package alpha

import (
	"go.uber.org/fx"

	"arb_bot/internal/grid"
	"arb_bot/internal/modules/alpha/service"
	"arb_bot/internal/modules/config"
	"arb_bot/internal/signals"
)

func Module() fx.Option {
	return fx.Module("alpha",
		fx.Provide(
			grid.NewBook,
			signals.NewCollection,
			func(cfg *config.Config, book *grid.Book, sigs *signals.Collection) *service.AlphaModel {
				return service.NewAlphaModel(book, sigs, cfg.SignalTTL)
			},
		),
	)
}
