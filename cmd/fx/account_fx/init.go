package account_fx

import (
	"go.uber.org/fx"

	"zapmenu/internal/repositories"
	"zapmenu/internal/services"
)

var Module = fx.Provide(provideAccountService)

func provideAccountService(accountRepo repositories.AccountRepository, store repositories.BillingStore, policy services.BillingPolicy) services.AccountServiceInterface {
	return services.NewAccountService(accountRepo, store, policy)
}
