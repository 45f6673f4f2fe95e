package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"zapmenu/pkg/utils"
)

const (
	ctxAccountID  = "account_id"
	ctxMerchantID = "merchant_id"
	ctxRole       = "Role"
)

func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondError(c, http.StatusUnauthorized, "Authorization header missing or invalid")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := utils.ValidateToken(tokenString)
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		accountID, err := uuid.Parse(claims.AccountID)
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ctxAccountID, accountID)
		if merchantID, err := uuid.Parse(claims.MerchantID); err == nil {
			c.Set(ctxMerchantID, merchantID)
		}
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

func RoleMiddleware(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxRole)

		if role != requiredRole {
			utils.RespondError(c, http.StatusForbidden, "Forbidden: insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireMerchant rejects tokens that are not bound to a merchant.
func RequireMerchant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := MerchantID(c); !ok {
			utils.RespondError(c, http.StatusForbidden, "Forbidden: no merchant bound to this account")
			c.Abort()
			return
		}
		c.Next()
	}
}

// MerchantID returns the merchant the caller acts for.
func MerchantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxMerchantID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// AccountID returns the authenticated account.
func AccountID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxAccountID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
