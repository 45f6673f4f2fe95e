package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbm "zapmenu/internal/models/db_models"
	"zapmenu/pkg/utils"
)

// BillingStore is the durable record of every merchant's subscription state.
// Writes are partial (merge) updates of the billing columns.
type BillingStore interface {
	CreateMerchant(ctx context.Context, merchant *dbm.Merchant) error
	// DeleteMerchant removes a merchant for good. Only used to undo a sign-up.
	DeleteMerchant(ctx context.Context, id uuid.UUID) error
	// FindMerchant returns nil, nil when the merchant does not exist.
	FindMerchant(ctx context.Context, id uuid.UUID) (*dbm.Merchant, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, profile MerchantProfile) error

	// UpdateSubscription applies the patch only if the stored version still equals
	// expectedVersion; otherwise it returns utils.ErrStaleSubscription.
	UpdateSubscription(ctx context.Context, id uuid.UUID, expectedVersion int64, patch dbm.SubscriptionPatch) error
	// ForceUpdateSubscription applies the patch unconditionally (admin override).
	ForceUpdateSubscription(ctx context.Context, id uuid.UUID, patch dbm.SubscriptionPatch) error
	// SetExternalCustomerID stores customerID only if none is stored yet and
	// returns whichever id ends up stored.
	SetExternalCustomerID(ctx context.Context, id uuid.UUID, customerID string) (string, error)

	// ListDueForReconciliation pages (by id) through merchants whose due date is
	// before now and whose status is not suspended yet.
	ListDueForReconciliation(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]dbm.Merchant, error)
}

type MerchantProfile struct {
	Name          string
	Email         string
	Document      string
	Phone         string
	PostalCode    string
	AddressNumber string
}

type billingRepository struct {
	db *gorm.DB
}

func NewBillingRepository(db *gorm.DB) BillingStore {
	return &billingRepository{db: db}
}

func (b *billingRepository) CreateMerchant(ctx context.Context, merchant *dbm.Merchant) error {
	if merchant.Subscription.Status == "" {
		merchant.Subscription.Status = dbm.SubStatusTrial
	}
	if due := merchant.Subscription.NextDueDate; due != nil {
		utc := due.UTC()
		merchant.Subscription.NextDueDate = &utc
	}
	return b.db.WithContext(ctx).Create(merchant).Error
}

func (b *billingRepository) DeleteMerchant(ctx context.Context, id uuid.UUID) error {
	return b.db.WithContext(ctx).Unscoped().Delete(&dbm.Merchant{}, "id = ?", id).Error
}

func (b *billingRepository) FindMerchant(ctx context.Context, id uuid.UUID) (*dbm.Merchant, error) {
	var merchant dbm.Merchant
	err := b.db.WithContext(ctx).First(&merchant, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &merchant, nil
}

func (b *billingRepository) UpdateProfile(ctx context.Context, id uuid.UUID, profile MerchantProfile) error {
	res := b.db.WithContext(ctx).Model(&dbm.Merchant{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"name":           profile.Name,
			"email":          profile.Email,
			"document":       profile.Document,
			"phone":          profile.Phone,
			"postal_code":    profile.PostalCode,
			"address_number": profile.AddressNumber,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrMerchantNotFound
	}
	return nil
}

func (b *billingRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, expectedVersion int64, patch dbm.SubscriptionPatch) error {
	cols := patch.Columns()
	cols["billing_version"] = gorm.Expr("billing_version + 1")

	res := b.db.WithContext(ctx).Model(&dbm.Merchant{}).
		Where("id = ? AND billing_version = ?", id, expectedVersion).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return b.missingOrStale(ctx, id)
	}
	return nil
}

func (b *billingRepository) ForceUpdateSubscription(ctx context.Context, id uuid.UUID, patch dbm.SubscriptionPatch) error {
	cols := patch.Columns()
	cols["billing_version"] = gorm.Expr("billing_version + 1")

	res := b.db.WithContext(ctx).Model(&dbm.Merchant{}).
		Where("id = ?", id).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrMerchantNotFound
	}
	return nil
}

func (b *billingRepository) SetExternalCustomerID(ctx context.Context, id uuid.UUID, customerID string) (string, error) {
	res := b.db.WithContext(ctx).Model(&dbm.Merchant{}).
		Where("id = ? AND (billing_external_customer_id IS NULL OR billing_external_customer_id = '')", id).
		Updates(map[string]interface{}{
			"billing_external_customer_id": customerID,
			"billing_version":              gorm.Expr("billing_version + 1"),
		})
	if res.Error != nil {
		return "", res.Error
	}

	merchant, err := b.FindMerchant(ctx, id)
	if err != nil {
		return "", err
	}
	if merchant == nil {
		return "", utils.ErrMerchantNotFound
	}
	return merchant.Subscription.ExternalCustomerID, nil
}

func (b *billingRepository) ListDueForReconciliation(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]dbm.Merchant, error) {
	var merchants []dbm.Merchant
	err := b.db.WithContext(ctx).
		Where("billing_next_due_date IS NOT NULL AND billing_next_due_date < ?", now.UTC()).
		Where("billing_status <> ?", dbm.SubStatusSuspended).
		Where("id > ?", afterID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Limit(limit).
		Find(&merchants).Error
	if err != nil {
		return nil, err
	}
	return merchants, nil
}

func (b *billingRepository) missingOrStale(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := b.db.WithContext(ctx).Model(&dbm.Merchant{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return utils.ErrMerchantNotFound
	}
	return utils.ErrStaleSubscription
}
