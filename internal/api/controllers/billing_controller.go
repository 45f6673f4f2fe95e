package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zapmenu/internal/models/request_models"
	"zapmenu/internal/models/response_models"
	"zapmenu/internal/services"
	"zapmenu/pkg/middleware"
	"zapmenu/pkg/utils"
)

type BillingController struct {
	subscriptions services.SubscriptionServiceInterface
	reconciler    services.ReconciliationServiceInterface
	cards         services.CardPaymentServiceInterface
	pix           services.PixPaymentServiceInterface
	policy        services.BillingPolicy
}

func NewBillingController(
	subscriptions services.SubscriptionServiceInterface,
	reconciler services.ReconciliationServiceInterface,
	cards services.CardPaymentServiceInterface,
	pix services.PixPaymentServiceInterface,
	policy services.BillingPolicy,
) *BillingController {
	return &BillingController{
		subscriptions: subscriptions,
		reconciler:    reconciler,
		cards:         cards,
		pix:           pix,
		policy:        policy,
	}
}

// GetSubscription godoc
// @Summary Current subscription
// @Description Reconciles the subscription against today and returns it
// @Tags Billing
// @Produce json
// @Success 200 {object} utils.APIResponse{data=response_models.SubscriptionStatusResponse}
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/subscription [get]
func (b *BillingController) GetSubscription(c *gin.Context) {
	merchantID, _ := middleware.MerchantID(c)

	out, err := b.subscriptions.GetSubscriptionStatus(c.Request.Context(), merchantID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, out, "Subscription fetched successfully")
}

// Reconcile godoc
// @Summary Re-evaluate the subscription
// @Description Runs reconciliation for the caller's merchant after its record changed
// @Tags Billing
// @Produce json
// @Success 200 {object} utils.APIResponse{data=response_models.ReconcileResponse}
// @Security BearerAuth
// @Router /billing/reconcile [post]
func (b *BillingController) Reconcile(c *gin.Context) {
	merchantID, _ := middleware.MerchantID(c)

	res, err := b.reconciler.Reconcile(c.Request.Context(), merchantID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.ReconcileResponse{
		From:    string(res.From),
		To:      string(res.To),
		Changed: res.Changed,
	}, "Subscription reconciled")
}

// PayWithCard godoc
// @Summary Pay with a credit card
// @Description One-off charge, or a monthly recurring charge when recurrent is true
// @Tags Billing
// @Accept json
// @Produce json
// @Param request body request_models.CardPaymentRequest true "Card and holder data"
// @Success 200 {object} utils.APIResponse{data=response_models.CardPaymentResponse}
// @Failure 400 {object} utils.APIResponse
// @Failure 422 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/card [post]
func (b *BillingController) PayWithCard(c *gin.Context) {
	merchantID, _ := middleware.MerchantID(c)

	var req request_models.CardPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	res, err := b.cards.Pay(c.Request.Context(), merchantID, services.CardPaymentInput{
		HolderName:    req.HolderName,
		Number:        req.Number,
		ExpiryMonth:   req.ExpiryMonth,
		ExpiryYear:    req.ExpiryYear,
		CVV:           req.CVV,
		Document:      req.Document,
		Email:         req.Email,
		Phone:         req.Phone,
		PostalCode:    req.PostalCode,
		AddressNumber: req.AddressNumber,
		Recurrent:     req.Recurrent,
		RemoteIP:      c.ClientIP(),
	})
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	out := response_models.CardPaymentResponse{
		PaymentID: res.PaymentID,
		Recurrent: res.Recurrent,
		Status:    services.StatusView(*res.Merchant, time.Now(), b.policy),
	}
	if due := res.Merchant.Subscription.NextDueDate; due != nil {
		out.NextDueDate = *due
	}
	utils.RespondSuccess(c, out, "Payment confirmed")
}

// StartPix godoc
// @Summary Start a PIX payment
// @Description Creates a PIX charge and polls it until paid, stopped or expired. Replaces any running session.
// @Tags Billing
// @Produce json
// @Success 200 {object} utils.APIResponse{data=response_models.PixSessionResponse}
// @Failure 422 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/pix [post]
func (b *BillingController) StartPix(c *gin.Context) {
	merchantID, _ := middleware.MerchantID(c)

	view, err := b.pix.Start(c.Request.Context(), merchantID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, pixResponse(view), "PIX payment started")
}

// GetPix godoc
// @Summary PIX session state
// @Tags Billing
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} utils.APIResponse{data=response_models.PixSessionResponse}
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/pix/{sessionId} [get]
func (b *BillingController) GetPix(c *gin.Context) {
	merchantID, _ := middleware.MerchantID(c)

	view, err := b.pix.Get(merchantID, c.Param("sessionId"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, pixResponse(view), "PIX session fetched successfully")
}

// CheckPix godoc
// @Summary Check a PIX payment now
// @Description Queries the charge once without waiting for the next poll
// @Tags Billing
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} utils.APIResponse{data=response_models.PixSessionResponse}
// @Failure 404 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/pix/{sessionId}/check [post]
func (b *BillingController) CheckPix(c *gin.Context) {
	merchantID, _ := middleware.MerchantID(c)

	view, err := b.pix.CheckNow(c.Request.Context(), merchantID, c.Param("sessionId"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, pixResponse(view), "PIX payment checked")
}

// StopPix godoc
// @Summary Stop a PIX session
// @Tags Billing
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/pix/{sessionId} [delete]
func (b *BillingController) StopPix(c *gin.Context) {
	merchantID, _ := middleware.MerchantID(c)

	if err := b.pix.Stop(merchantID, c.Param("sessionId")); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "PIX session stopped")
}

func pixResponse(v *services.PixSessionView) response_models.PixSessionResponse {
	return response_models.PixSessionResponse{
		SessionID:     v.ID,
		ChargeID:      v.ChargeID,
		State:         string(v.State),
		QRCodeImage:   v.QRCodeImage,
		QRCodePayload: v.QRCodePayload,
		ExpiresAt:     v.ExpiresAt,
		ConfirmedAt:   v.ConfirmedAt,
	}
}
