package events_fx

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"zapmenu/internal/config"
	"zapmenu/internal/services"
)

var Module = fx.Provide(providePublisher)

func providePublisher(lc fx.Lifecycle, cfg *config.Config) (services.BillingEventPublisher, error) {
	if cfg.RabbitMQURL == "" {
		log.Info().Msg("RABBITMQ_URL not set, billing events are only logged")
		return services.NewLogEventPublisher(), nil
	}

	pub, err := services.NewRabbitEventPublisher(cfg.RabbitMQURL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return pub, nil
}
