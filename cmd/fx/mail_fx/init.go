package mail_fx

import (
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"zapmenu/internal/config"
	"zapmenu/internal/services"
)

var Module = fx.Provide(provideBillingMailer)

func provideBillingMailer(cfg *config.Config) services.BillingMailer {
	if cfg.SMTP.Host == "" {
		log.Info().Msg("SMTP_HOST not set, billing mail disabled")
	}
	return services.NewBillingMailer(cfg.SMTP)
}
