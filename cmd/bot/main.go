package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"arb_bot/internal/metrics"
	"arb_bot/internal/modules/alpha"
	"arb_bot/internal/modules/backup"
	"arb_bot/internal/modules/brokerage"
	"arb_bot/internal/modules/config"
	"arb_bot/internal/modules/health"
	"arb_bot/internal/modules/portfolio"
	"arb_bot/internal/runner"
	"arb_bot/pkg/logger"
	"arb_bot/pkg/tracing"
)

const serviceName = "arb_bot"

func main() {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName(serviceName)
	tracing.SetServiceName(serviceName)

	app := fx.New(
		config.Module(),
		backup.Module(),
		brokerage.Module(),
		alpha.Module(),
		portfolio.Module(),
		health.Module(),
		runner.Module(),
		fx.Invoke(
			setupTracing,
			serveMetrics,
		),
	)
	app.Run()
}

func setupTracing(lc fx.Lifecycle, cfg *config.Config) error {
	if cfg.Jaeger.Host == "" {
		return nil
	}
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Jaeger.Host,
		Port: cfg.Jaeger.Port,
	})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeTracer()
			return nil
		},
	})
	return nil
}

func serveMetrics(lc fx.Lifecycle, cfg *config.Config) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("metrics server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
