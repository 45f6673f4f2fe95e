package utils

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleMerchant = "merchant"
	RoleAdmin    = "admin"

	tokenTTL = 12 * time.Hour
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

// SetJWTSecret overrides the signing key read from JWT_SECRET.
func SetJWTSecret(secret string) {
	if secret != "" {
		jwtKey = []byte(secret)
	}
}

type Claims struct {
	AccountID  string `json:"account_id"`
	MerchantID string `json:"merchant_id,omitempty"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

func CreateToken(accountID uuid.UUID, merchantID *uuid.UUID, role string) (string, error) {
	claims := &Claims{
		AccountID: accountID.String(),
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if merchantID != nil {
		claims.MerchantID = merchantID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

func ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return jwtKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
