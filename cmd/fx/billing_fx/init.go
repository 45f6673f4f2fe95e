package billing_fx

import (
	"context"

	"go.uber.org/fx"

	"zapmenu/internal/config"
	"zapmenu/internal/repositories"
	"zapmenu/internal/services"
)

var Module = fx.Options(
	fx.Provide(
		providePolicy,
		provideReconciliation,
		provideAccessGate,
		provideSubscriptionService,
		provideCustomerService,
		provideCardPaymentService,
		providePixPaymentService,
		provideAdminService,
		provideOverviewService,
		provideMerchantService,
	),
)

func providePolicy(cfg *config.Config) services.BillingPolicy {
	return services.NewBillingPolicy(cfg)
}

func provideReconciliation(
	cfg *config.Config,
	store repositories.BillingStore,
	policy services.BillingPolicy,
	events services.BillingEventPublisher,
	mailer services.BillingMailer,
) services.ReconciliationServiceInterface {
	return services.NewReconciliationService(store, policy, events, mailer, cfg.Billing.SweepBatch)
}

func provideAccessGate(store repositories.BillingStore, reconciler services.ReconciliationServiceInterface) services.AccessGateInterface {
	return services.NewAccessGate(store, reconciler)
}

func provideSubscriptionService(
	store repositories.BillingStore,
	reconciler services.ReconciliationServiceInterface,
	policy services.BillingPolicy,
	locker services.Locker,
	events services.BillingEventPublisher,
	mailer services.BillingMailer,
) services.SubscriptionServiceInterface {
	return services.NewSubscriptionService(store, reconciler, policy, locker, events, mailer)
}

func provideCustomerService(store repositories.BillingStore, gateway services.PaymentGateway) services.CustomerServiceInterface {
	return services.NewCustomerService(store, gateway)
}

func provideCardPaymentService(
	gateway services.PaymentGateway,
	customers services.CustomerServiceInterface,
	subscriptions services.SubscriptionServiceInterface,
	policy services.BillingPolicy,
) services.CardPaymentServiceInterface {
	return services.NewCardPaymentService(gateway, customers, subscriptions, policy)
}

// providePixPaymentService also hands out the concrete service so the
// scheduler can evict finished sessions.
func providePixPaymentService(
	lc fx.Lifecycle,
	cfg *config.Config,
	gateway services.PaymentGateway,
	customers services.CustomerServiceInterface,
	subscriptions services.SubscriptionServiceInterface,
	policy services.BillingPolicy,
) (services.PixPaymentServiceInterface, *services.PixPaymentService) {
	pix := services.NewPixPaymentService(gateway, customers, subscriptions, policy, cfg.Billing.PixPoll, cfg.Billing.PixSessionTTL)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pix.Close()
			return nil
		},
	})
	return pix, pix
}

func provideAdminService(store repositories.BillingStore, events services.BillingEventPublisher) services.AdminServiceInterface {
	return services.NewAdminService(store, events)
}

func provideOverviewService(repo repositories.BillingOverviewRepository) services.BillingOverviewService {
	return services.NewBillingOverviewService(repo)
}

func provideMerchantService(store repositories.BillingStore) services.MerchantServiceInterface {
	return services.NewMerchantService(store)
}
