package controllers_fx

import (
	"go.uber.org/fx"

	"zapmenu/internal/api/controllers"
)

var Module = fx.Options(
	fx.Provide(controllers.NewAccountController),
	fx.Provide(controllers.NewBillingController),
	fx.Provide(controllers.NewMerchantController),
	fx.Provide(controllers.NewAdminController))
