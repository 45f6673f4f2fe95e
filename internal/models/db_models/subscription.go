package db_models

import (
	"time"

	"gorm.io/datatypes"
)

type SubscriptionStatus string

const (
	SubStatusTrial     SubscriptionStatus = "trial"
	SubStatusActive    SubscriptionStatus = "active"
	SubStatusOverdue   SubscriptionStatus = "overdue"
	SubStatusSuspended SubscriptionStatus = "suspended"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubStatusTrial, SubStatusActive, SubStatusOverdue, SubStatusSuspended:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "PIX"
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
)

// VipYear is the first year treated as "effectively unlimited" access.
const VipYear = 2099

// VipDueDate is the sentinel due date written by a lifetime grant.
var VipDueDate = time.Date(VipYear, time.December, 31, 23, 59, 59, 0, time.UTC)

// SubscriptionRecord is the billing state embedded in every merchant.
type SubscriptionRecord struct {
	Status             SubscriptionStatus `gorm:"size:16;index;not null;default:trial"`
	NextDueDate        *time.Time         `gorm:"index"`
	ExternalCustomerID string             `gorm:"size:64"`
	PaymentMethod      PaymentMethod      `gorm:"size:16"`
	IsRecurrent        bool               `gorm:"not null;default:false"`
	LastPaymentID      string             `gorm:"size:64"`
	IsVip              bool               `gorm:"not null;default:false"`

	// Bumped on every billing write; conditional updates compare against it.
	Version int64 `gorm:"not null;default:0"`

	// Who changed the record last (source, actor, at).
	Meta datatypes.JSON `gorm:"type:jsonb"`
}

// DisplayVip reports unlimited access for display, including records whose
// due date carries the sentinel but predate the flag.
func (r SubscriptionRecord) DisplayVip() bool {
	if r.IsVip {
		return true
	}
	return r.NextDueDate != nil && r.NextDueDate.Year() >= VipYear
}

// SubscriptionPatch is a partial update of the record; nil fields are left alone.
type SubscriptionPatch struct {
	Status             *SubscriptionStatus
	NextDueDate        *time.Time
	ExternalCustomerID *string
	PaymentMethod      *PaymentMethod
	IsRecurrent        *bool
	LastPaymentID      *string
	IsVip              *bool
	Meta               datatypes.JSON
}

// Apply returns a copy of r with the patch merged in. Version is not touched.
func (p SubscriptionPatch) Apply(r SubscriptionRecord) SubscriptionRecord {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.NextDueDate != nil {
		due := *p.NextDueDate
		r.NextDueDate = &due
	}
	if p.ExternalCustomerID != nil {
		r.ExternalCustomerID = *p.ExternalCustomerID
	}
	if p.PaymentMethod != nil {
		r.PaymentMethod = *p.PaymentMethod
	}
	if p.IsRecurrent != nil {
		r.IsRecurrent = *p.IsRecurrent
	}
	if p.LastPaymentID != nil {
		r.LastPaymentID = *p.LastPaymentID
	}
	if p.IsVip != nil {
		r.IsVip = *p.IsVip
	}
	if p.Meta != nil {
		r.Meta = p.Meta
	}
	return r
}

// Columns returns the gorm column map for the patch.
func (p SubscriptionPatch) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if p.Status != nil {
		cols["billing_status"] = string(*p.Status)
	}
	if p.NextDueDate != nil {
		cols["billing_next_due_date"] = p.NextDueDate.UTC()
	}
	if p.ExternalCustomerID != nil {
		cols["billing_external_customer_id"] = *p.ExternalCustomerID
	}
	if p.PaymentMethod != nil {
		cols["billing_payment_method"] = string(*p.PaymentMethod)
	}
	if p.IsRecurrent != nil {
		cols["billing_is_recurrent"] = *p.IsRecurrent
	}
	if p.LastPaymentID != nil {
		cols["billing_last_payment_id"] = *p.LastPaymentID
	}
	if p.IsVip != nil {
		cols["billing_is_vip"] = *p.IsVip
	}
	if p.Meta != nil {
		cols["billing_meta"] = p.Meta
	}
	return cols
}
