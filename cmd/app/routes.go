package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zapmenu/internal/api/controllers"
	"zapmenu/internal/config"
	"zapmenu/internal/services"
	"zapmenu/pkg/middleware"
	"zapmenu/pkg/utils"
)

func ProvideRouter(
	cfg *config.Config,
	gate services.AccessGateInterface,
	accountController *controllers.AccountController,
	billingController *controllers.BillingController,
	merchantController *controllers.MerchantController,
	adminController *controllers.AdminController) *gin.Engine {

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.PrometheusMiddleware())

	RegisterRoutes(r, gate, accountController, billingController, merchantController, adminController)

	return r
}

func RegisterRoutes(r *gin.Engine,
	gate services.AccessGateInterface,
	accountController *controllers.AccountController,
	billingController *controllers.BillingController,
	merchantController *controllers.MerchantController,
	adminController *controllers.AdminController) {

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	accountGroup := r.Group("/accounts")
	accountGroup.POST("/register", accountController.Register)
	accountGroup.POST("/login", accountController.Login)

	billingGroup := r.Group("/billing", middleware.JWTAuthMiddleware(), middleware.RequireMerchant())
	billingGroup.GET("/subscription", billingController.GetSubscription)
	billingGroup.POST("/reconcile", billingController.Reconcile)
	billingGroup.POST("/card", billingController.PayWithCard)
	billingGroup.POST("/pix", billingController.StartPix)
	billingGroup.GET("/pix/:sessionId", billingController.GetPix)
	billingGroup.POST("/pix/:sessionId/check", billingController.CheckPix)
	billingGroup.DELETE("/pix/:sessionId", billingController.StopPix)

	merchantGroup := r.Group("/merchant", middleware.JWTAuthMiddleware(), middleware.RequireMerchant())
	merchantGroup.PUT("/profile", middleware.RequireActiveSubscription(gate), merchantController.UpdateProfile)

	adminGroup := r.Group("/admin", middleware.JWTAuthMiddleware(), middleware.RoleMiddleware(utils.RoleAdmin))
	adminGroup.POST("/merchants/:id/grant", adminController.Grant)
	adminGroup.PUT("/merchants/:id/status", adminController.SetStatus)
	adminGroup.GET("/billing/overview", adminController.Overview)
	adminGroup.POST("/billing/sweep", adminController.Sweep)
}
