package services

import (
	"time"

	"github.com/shopspring/decimal"

	"zapmenu/internal/config"
)

const day = 24 * time.Hour

// BillingPolicy carries the subscription constants every billing component shares.
type BillingPolicy struct {
	Price     decimal.Decimal
	Currency  string
	GraceDays int
	Cycle     time.Duration
	TrialDays int
}

func NewBillingPolicy(cfg *config.Config) BillingPolicy {
	return BillingPolicy{
		Price:     cfg.Billing.Price,
		Currency:  cfg.Billing.Currency,
		GraceDays: cfg.Billing.GraceDays,
		Cycle:     time.Duration(cfg.Billing.CycleDays) * day,
		TrialDays: cfg.Billing.TrialDays,
	}
}

// DefaultBillingPolicy is 49.90 BRL, 5 days of grace and a 30 day cycle.
func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		Price:     decimal.RequireFromString("49.90"),
		Currency:  "BRL",
		GraceDays: 5,
		Cycle:     30 * day,
	}
}

// NextDueDate extends from the current due date while it is still in the
// future, otherwise from now. Prepaid days are never lost.
func NextDueDate(current *time.Time, now time.Time, cycle time.Duration) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.Add(cycle).UTC()
}

// TrialDueDate returns the due date of a freshly registered merchant, or nil
// when trials are not time-boxed.
func (p BillingPolicy) TrialDueDate(now time.Time) *time.Time {
	if p.TrialDays <= 0 {
		return nil
	}
	due := now.Add(time.Duration(p.TrialDays) * day).UTC()
	return &due
}
