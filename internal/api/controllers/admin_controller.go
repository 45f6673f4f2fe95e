package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"zapmenu/internal/models/db_models"
	"zapmenu/internal/models/request_models"
	"zapmenu/internal/models/response_models"
	"zapmenu/internal/services"
	"zapmenu/pkg/middleware"
	"zapmenu/pkg/utils"
)

type AdminController struct {
	admin      services.AdminServiceInterface
	overview   services.BillingOverviewService
	reconciler services.ReconciliationServiceInterface
	policy     services.BillingPolicy
}

func NewAdminController(
	admin services.AdminServiceInterface,
	overview services.BillingOverviewService,
	reconciler services.ReconciliationServiceInterface,
	policy services.BillingPolicy,
) *AdminController {
	return &AdminController{admin: admin, overview: overview, reconciler: reconciler, policy: policy}
}

func actor(c *gin.Context) string {
	if id, ok := middleware.AccountID(c); ok {
		return id.String()
	}
	return "unknown"
}

// Grant godoc
// @Summary Grant free access
// @Description Sets the due date to now + months, to an explicit due_date, or to the lifetime sentinel. Always activates.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Merchant ID"
// @Param request body request_models.GrantRequest true "Grant"
// @Success 200 {object} utils.APIResponse{data=response_models.SubscriptionStatusResponse}
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/merchants/{id}/grant [post]
func (a *AdminController) Grant(c *gin.Context) {
	merchantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid merchant id")
		return
	}

	var req request_models.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	raw, err := utils.DueDateFromAny(req.DueDate)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid due_date")
		return
	}
	until, err := utils.ParseDueDate(raw)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid due_date")
		return
	}

	merchant, err := a.admin.GrantOverride(c.Request.Context(), actor(c), merchantID, services.GrantInput{
		Months:   req.Months,
		Lifetime: req.Lifetime,
		Until:    until,
	})
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, services.StatusView(*merchant, time.Now(), a.policy), "Grant applied")
}

// SetStatus godoc
// @Summary Force a subscription status
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Merchant ID"
// @Param request body request_models.StatusRequest true "active or suspended"
// @Success 200 {object} utils.APIResponse{data=response_models.SubscriptionStatusResponse}
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/merchants/{id}/status [put]
func (a *AdminController) SetStatus(c *gin.Context) {
	merchantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid merchant id")
		return
	}

	var req request_models.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "status must be active or suspended")
		return
	}

	merchant, err := a.admin.SetStatus(c.Request.Context(), actor(c), merchantID, db_models.SubscriptionStatus(req.Status))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, services.StatusView(*merchant, time.Now(), a.policy), "Status updated")
}

// Overview godoc
// @Summary Billing overview
// @Description Merchant counts per status and merchants due in the next 7 days
// @Tags Admin
// @Produce json
// @Success 200 {object} utils.APIResponse{data=response_models.BillingOverviewResponse}
// @Security BearerAuth
// @Router /admin/billing/overview [get]
func (a *AdminController) Overview(c *gin.Context) {
	out, err := a.overview.Overview(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, out, "Overview fetched successfully")
}

// Sweep godoc
// @Summary Run reconciliation now
// @Description Evaluates every merchant past its due date
// @Tags Admin
// @Produce json
// @Success 200 {object} utils.APIResponse{data=response_models.SweepResponse}
// @Security BearerAuth
// @Router /admin/billing/sweep [post]
func (a *AdminController) Sweep(c *gin.Context) {
	report, err := a.reconciler.Sweep(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.SweepResponse{
		Scanned:     report.Scanned,
		Transitions: report.Transitions,
		Failures:    report.Failures,
	}, "Sweep finished")
}
