package utils

import "errors"

var (
	ErrDatabaseError         = errors.New("database error")
	ErrMerchantNotFound      = errors.New("merchant not found")
	ErrAccountNotFound       = errors.New("account not found")
	ErrEmailAlreadyExists    = errors.New("email already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrForbidden             = errors.New("forbidden")
	ErrSubscriptionSuspended = errors.New("subscription suspended")
	ErrStaleSubscription     = errors.New("subscription record changed concurrently")
	ErrSessionNotFound       = errors.New("payment session not found")
	ErrInvalidStatus         = errors.New("invalid subscription status")
	ErrInvalidGrant          = errors.New("grant must be lifetime or a positive number of months")
	ErrLockBusy              = errors.New("payment already being processed")
	ErrGatewayUnavailable    = errors.New("payment provider unavailable")
)
