package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	dbm "zapmenu/internal/models/db_models"
	"zapmenu/internal/repositories"
	"zapmenu/pkg/utils"
)

// CanMutate is false only for suspended subscriptions.
func CanMutate(rec dbm.SubscriptionRecord) bool {
	return rec.Status != dbm.SubStatusSuspended
}

type AccessGateInterface interface {
	// Check returns utils.ErrSubscriptionSuspended when the merchant may not mutate.
	Check(ctx context.Context, merchantID uuid.UUID) error
}

// AccessGate guards merchant writes. It never changes status itself; the
// reconciliation it runs first may.
type AccessGate struct {
	store      repositories.BillingStore
	reconciler ReconciliationServiceInterface
}

func NewAccessGate(store repositories.BillingStore, reconciler ReconciliationServiceInterface) AccessGateInterface {
	return &AccessGate{store: store, reconciler: reconciler}
}

func (g *AccessGate) Check(ctx context.Context, merchantID uuid.UUID) error {
	merchant, err := loadMerchant(ctx, g.store, merchantID)
	if err != nil {
		return err
	}
	res := g.reconciler.ReconcileRecord(ctx, merchant)

	// a failed downgrade write still denies
	if !CanMutate(merchant.Subscription) || res.Evaluated == dbm.SubStatusSuspended {
		return utils.ErrSubscriptionSuspended
	}
	return nil
}

func loadMerchant(ctx context.Context, store repositories.BillingStore, merchantID uuid.UUID) (*dbm.Merchant, error) {
	merchant, err := store.FindMerchant(ctx, merchantID)
	if err != nil {
		return nil, errors.Join(utils.ErrDatabaseError, err)
	}
	if merchant == nil {
		return nil, utils.ErrMerchantNotFound
	}
	return merchant, nil
}
