package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"zapmenu/pkg/utils"
)

// SubscriptionGate decides whether a merchant may mutate its data.
type SubscriptionGate interface {
	Check(ctx context.Context, merchantID uuid.UUID) error
}

// RequireActiveSubscription blocks mutating merchant routes while the
// subscription is suspended and points the client at the billing screen.
func RequireActiveSubscription(gate SubscriptionGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		merchantID, ok := MerchantID(c)
		if !ok {
			utils.RespondError(c, http.StatusForbidden, "Forbidden: no merchant bound to this account")
			c.Abort()
			return
		}

		if err := gate.Check(c.Request.Context(), merchantID); err != nil {
			utils.HandleServiceError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
