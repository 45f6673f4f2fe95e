package lock_fx

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"zapmenu/internal/config"
	"zapmenu/internal/infra"
	"zapmenu/internal/services"
)

var Module = fx.Provide(provideLocker)

func provideLocker(lc fx.Lifecycle, cfg *config.Config) (services.Locker, error) {
	client, err := infra.InitRedis(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Info().Msg("REDIS_URL not set, payment locks are process-local")
		return services.NewLocalLocker(), nil
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return services.NewRedisLocker(client), nil
}
