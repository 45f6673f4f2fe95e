package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	dbm "zapmenu/internal/models/db_models"
	"zapmenu/internal/repositories"
	"zapmenu/pkg/utils"
)

// GrantInput is a lifetime grant, a positive number of months or an explicit
// future due date. Exactly one must be set.
type GrantInput struct {
	Months   int
	Lifetime bool
	Until    *time.Time
}

type AdminServiceInterface interface {
	// GrantOverride resets the due date outright; it does not extend it.
	GrantOverride(ctx context.Context, actor string, merchantID uuid.UUID, in GrantInput) (*dbm.Merchant, error)
	SetStatus(ctx context.Context, actor string, merchantID uuid.UUID, status dbm.SubscriptionStatus) (*dbm.Merchant, error)
}

type AdminService struct {
	store  repositories.BillingStore
	events BillingEventPublisher
	now    func() time.Time
}

func NewAdminService(store repositories.BillingStore, events BillingEventPublisher) *AdminService {
	return &AdminService{store: store, events: events, now: time.Now}
}

func (a *AdminService) GrantOverride(ctx context.Context, actor string, merchantID uuid.UUID, in GrantInput) (*dbm.Merchant, error) {
	now := a.now()

	if in.Months < 0 || grantKinds(in) != 1 {
		return nil, utils.ErrInvalidGrant
	}

	var due time.Time
	var vip bool
	switch {
	case in.Lifetime:
		due, vip = dbm.VipDueDate, true
	case in.Months > 0:
		due = now.UTC().AddDate(0, in.Months, 0)
	default:
		if !in.Until.After(now) {
			return nil, utils.ErrInvalidGrant
		}
		due = in.Until.UTC()
	}

	status := dbm.SubStatusActive
	patch := dbm.SubscriptionPatch{
		Status:      &status,
		NextDueDate: &due,
		IsVip:       &vip,
		Meta:        auditMeta("admin_grant", actor, now),
	}

	merchant, err := a.force(ctx, merchantID, patch, actor)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("merchant_id", merchantID.String()).
		Str("actor", actor).
		Int("months", in.Months).
		Bool("lifetime", in.Lifetime).
		Time("next_due_date", due).
		Msg("admin grant applied")
	return merchant, nil
}

func grantKinds(in GrantInput) int {
	n := 0
	if in.Lifetime {
		n++
	}
	if in.Months > 0 {
		n++
	}
	if in.Until != nil {
		n++
	}
	return n
}

func (a *AdminService) SetStatus(ctx context.Context, actor string, merchantID uuid.UUID, status dbm.SubscriptionStatus) (*dbm.Merchant, error) {
	if status != dbm.SubStatusActive && status != dbm.SubStatusSuspended {
		return nil, utils.ErrInvalidStatus
	}

	patch := dbm.SubscriptionPatch{
		Status: &status,
		Meta:   auditMeta("admin_status", actor, a.now()),
	}
	merchant, err := a.force(ctx, merchantID, patch, actor)
	if err != nil {
		return nil, err
	}

	log.Info().Str("merchant_id", merchantID.String()).Str("actor", actor).Str("status", string(status)).Msg("admin status forced")
	return merchant, nil
}

// force writes unconditionally and reports the resulting record.
func (a *AdminService) force(ctx context.Context, merchantID uuid.UUID, patch dbm.SubscriptionPatch, actor string) (*dbm.Merchant, error) {
	before, err := loadMerchant(ctx, a.store, merchantID)
	if err != nil {
		return nil, err
	}

	if err := a.store.ForceUpdateSubscription(ctx, merchantID, patch); err != nil {
		if errors.Is(err, utils.ErrMerchantNotFound) {
			return nil, err
		}
		return nil, errors.Join(utils.ErrDatabaseError, err)
	}

	after, err := loadMerchant(ctx, a.store, merchantID)
	if err != nil {
		return nil, err
	}

	if before.Subscription.Status != after.Subscription.Status {
		err := a.events.PublishStatusChanged(ctx, StatusChangedEvent{
			MerchantID:  merchantID,
			From:        before.Subscription.Status,
			To:          after.Subscription.Status,
			NextDueDate: after.Subscription.NextDueDate,
			Source:      "admin:" + actor,
			OccurredAt:  a.now().UTC(),
		})
		if err != nil {
			log.Warn().Err(err).Str("merchant_id", merchantID.String()).Msg("publish status change failed")
		}
	}
	return after, nil
}
