package response_models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubscriptionStatusResponse struct {
	MerchantID    string          `json:"merchant_id"`
	Status        string          `json:"status"`
	NextDueDate   *time.Time      `json:"next_due_date"`
	DaysUntilDue  *int            `json:"days_until_due"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	IsRecurrent   bool            `json:"is_recurrent"`
	IsVip         bool            `json:"is_vip"`
	CanMutate     bool            `json:"can_mutate"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
}

type ReconcileResponse struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Changed bool   `json:"changed"`
}

type CardPaymentResponse struct {
	PaymentID   string                     `json:"payment_id"`
	Recurrent   bool                       `json:"recurrent"`
	NextDueDate time.Time                  `json:"next_due_date"`
	Status      SubscriptionStatusResponse `json:"subscription"`
}

type PixSessionResponse struct {
	SessionID     string     `json:"session_id"`
	ChargeID      string     `json:"charge_id"`
	State         string     `json:"state"`
	QRCodeImage   string     `json:"qr_code_image"`
	QRCodePayload string     `json:"qr_code_payload"`
	ExpiresAt     time.Time  `json:"expires_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

type MerchantDueSummary struct {
	MerchantID  string    `json:"merchant_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	NextDueDate time.Time `json:"next_due_date"`
	IsVip       bool      `json:"is_vip"`
}

type BillingOverviewResponse struct {
	GeneratedAt  time.Time            `json:"generated_at"`
	Counts       map[string]int64     `json:"counts"`
	Total        int64                `json:"total"`
	DueNext7Days []MerchantDueSummary `json:"due_next_7_days"`
}

type SweepResponse struct {
	Scanned     int `json:"scanned"`
	Transitions int `json:"transitions"`
	Failures    int `json:"failures"`
}
