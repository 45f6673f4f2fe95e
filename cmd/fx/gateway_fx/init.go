package gateway_fx

import (
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"zapmenu/internal/config"
	"zapmenu/internal/services"
)

var Module = fx.Provide(provideGateway)

func provideGateway(cfg *config.Config) services.PaymentGateway {
	if cfg.Gateway.APIKey == "" {
		log.Warn().Msg("PAYMENT_GATEWAY_API_KEY not set, gateway calls will be rejected")
	}
	return services.NewPaymentGateway(cfg.Gateway)
}
