package scheduler_fx

import (
	"context"

	"go.uber.org/fx"

	"zapmenu/internal/config"
	"zapmenu/internal/services"
	"zapmenu/internal/workers"
)

var Module = fx.Options(
	fx.Provide(provideReconcileJob),
	fx.Invoke(startReconcileJob),
)

func provideReconcileJob(cfg *config.Config, reconciler services.ReconciliationServiceInterface, pix *services.PixPaymentService) *workers.ReconcileJob {
	return workers.NewReconcileJob(reconciler, pix, cfg.Billing.SweepSchedule)
}

func startReconcileJob(lc fx.Lifecycle, job *workers.ReconcileJob) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return job.Start()
		},
		OnStop: func(ctx context.Context) error {
			return job.Stop(ctx)
		},
	})
}
