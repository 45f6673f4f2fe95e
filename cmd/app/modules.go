package main

import (
	"context"
	"time"

	"go.uber.org/fx"

	"zapmenu/cmd/fx/account_fx"
	"zapmenu/cmd/fx/billing_fx"
	"zapmenu/cmd/fx/db_fx"
	"zapmenu/cmd/fx/events_fx"
	"zapmenu/cmd/fx/gateway_fx"
	"zapmenu/cmd/fx/lock_fx"
	"zapmenu/cmd/fx/mail_fx"
	"zapmenu/internal/config"
	"zapmenu/internal/infra"
	"zapmenu/pkg/utils"
)

// coreModules is everything except the HTTP server and the scheduler.
func coreModules() fx.Option {
	return fx.Options(
		fx.Provide(config.Load),
		fx.Invoke(infra.InitLogger),
		fx.Invoke(func(cfg *config.Config) { utils.SetJWTSecret(cfg.JWTSecret) }),
		db_fx.Module,
		events_fx.Module,
		mail_fx.Module,
		lock_fx.Module,
		gateway_fx.Module,
		billing_fx.Module,
		account_fx.Module,
	)
}

// runWith starts a short-lived container, fills targets and stops it once fn returns.
func runWith(ctx context.Context, fn func() error, targets ...interface{}) error {
	app := fx.New(
		coreModules(),
		fx.NopLogger,
		fx.Populate(targets...),
	)

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return fn()
}
