package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// BillingRedirect is where clients send a merchant whose mutation was denied.
const BillingRedirect = "/billing"

type APIResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// fieldErrors is implemented by locally detected validation failures.
type fieldErrors interface {
	error
	FieldErrors() map[string]string
}

// rejection is implemented by failures the payment provider reported.
type rejection interface {
	error
	Rejection() string
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: message,
		TraceID: c.GetString("trace_id"),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	respondErrorData(c, code, message, nil)
}

func respondErrorData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: c.GetString("trace_id"),
		Data:    data,
	})
}

func HandleServiceError(c *gin.Context, err error) {
	var fe fieldErrors
	var rj rejection

	switch {
	case errors.As(err, &fe):
		respondErrorData(c, http.StatusBadRequest, "Invalid payment data", gin.H{"fields": fe.FieldErrors()})
	case errors.As(err, &rj):
		RespondError(c, http.StatusUnprocessableEntity, rj.Rejection())
	case errors.Is(err, ErrGatewayUnavailable):
		log.Warn().Err(err).Str("trace_id", c.GetString("trace_id")).Msg("payment provider unavailable")
		RespondError(c, http.StatusBadGateway, "Payment provider unavailable, please try again")
	case errors.Is(err, ErrSubscriptionSuspended):
		respondErrorData(c, http.StatusPaymentRequired, "Subscription suspended", gin.H{"redirect": BillingRedirect})
	case errors.Is(err, ErrMerchantNotFound):
		RespondError(c, http.StatusNotFound, "Merchant not found")
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrInvalidCredentials):
		RespondError(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, ErrEmailAlreadyExists):
		RespondError(c, http.StatusConflict, "Email already registered")
	case errors.Is(err, ErrSessionNotFound):
		RespondError(c, http.StatusNotFound, "Payment session not found")
	case errors.Is(err, ErrStaleSubscription), errors.Is(err, ErrLockBusy):
		RespondError(c, http.StatusConflict, "Subscription is being updated, please retry")
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidGrant):
		RespondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		RespondError(c, http.StatusForbidden, "Forbidden")
	case errors.Is(err, ErrDatabaseError):
		log.Error().Err(err).Str("trace_id", c.GetString("trace_id")).Msg("database error")
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	default:
		log.Error().Err(err).Str("trace_id", c.GetString("trace_id")).Msg("unhandled service error")
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
