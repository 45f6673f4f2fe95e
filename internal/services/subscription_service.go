package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	dbm "zapmenu/internal/models/db_models"
	"zapmenu/internal/models/response_models"
	"zapmenu/internal/repositories"
	"zapmenu/pkg/utils"
)

const (
	paymentLockTTL    = 30 * time.Second
	maxPaymentRetries = 3
)

// PaymentConfirmation is a payment the gateway reported as successful.
type PaymentConfirmation struct {
	MerchantID uuid.UUID
	ChargeID   string
	Method     dbm.PaymentMethod
	Recurrent  bool
}

type SubscriptionServiceInterface interface {
	GetSubscriptionStatus(ctx context.Context, merchantID uuid.UUID) (*response_models.SubscriptionStatusResponse, error)
	// ApplyPayment activates the subscription and extends the due date by one
	// cycle. Applying the same charge twice extends it once.
	ApplyPayment(ctx context.Context, confirmation PaymentConfirmation) (*dbm.Merchant, error)
}

type SubscriptionService struct {
	store      repositories.BillingStore
	reconciler ReconciliationServiceInterface
	policy     BillingPolicy
	locker     Locker
	events     BillingEventPublisher
	mailer     BillingMailer
	now        func() time.Time
}

func NewSubscriptionService(
	store repositories.BillingStore,
	reconciler ReconciliationServiceInterface,
	policy BillingPolicy,
	locker Locker,
	events BillingEventPublisher,
	mailer BillingMailer,
) *SubscriptionService {
	return &SubscriptionService{
		store:      store,
		reconciler: reconciler,
		policy:     policy,
		locker:     locker,
		events:     events,
		mailer:     mailer,
		now:        time.Now,
	}
}

func (s *SubscriptionService) GetSubscriptionStatus(ctx context.Context, merchantID uuid.UUID) (*response_models.SubscriptionStatusResponse, error) {
	merchant, err := loadMerchant(ctx, s.store, merchantID)
	if err != nil {
		return nil, err
	}
	res := s.reconciler.ReconcileRecord(ctx, merchant)

	view := StatusView(*merchant, s.now(), s.policy)
	if res.WriteFailed {
		view.Status = string(res.Evaluated)
		view.CanMutate = res.Evaluated != dbm.SubStatusSuspended
	}
	return &view, nil
}

// StatusView renders a merchant's subscription for clients.
func StatusView(m dbm.Merchant, now time.Time, policy BillingPolicy) response_models.SubscriptionStatusResponse {
	rec := m.Subscription
	view := response_models.SubscriptionStatusResponse{
		MerchantID:    m.ID.String(),
		Status:        string(rec.Status),
		NextDueDate:   rec.NextDueDate,
		PaymentMethod: string(rec.PaymentMethod),
		IsRecurrent:   rec.IsRecurrent,
		IsVip:         rec.DisplayVip(),
		CanMutate:     CanMutate(rec),
		Price:         policy.Price,
		Currency:      policy.Currency,
	}
	if rec.NextDueDate != nil {
		days := int(math.Ceil(float64(rec.NextDueDate.Sub(now)) / float64(day)))
		view.DaysUntilDue = &days
	}
	return view
}

func (s *SubscriptionService) ApplyPayment(ctx context.Context, c PaymentConfirmation) (*dbm.Merchant, error) {
	release, err := s.locker.Acquire(ctx, "payment:"+c.MerchantID.String(), paymentLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	for attempt := 1; attempt <= maxPaymentRetries; attempt++ {
		merchant, err := loadMerchant(ctx, s.store, c.MerchantID)
		if err != nil {
			return nil, err
		}

		rec := merchant.Subscription
		if c.ChargeID != "" && rec.LastPaymentID == c.ChargeID {
			log.Info().Str("merchant_id", c.MerchantID.String()).Str("charge_id", c.ChargeID).Msg("payment already applied")
			return merchant, nil
		}

		now := s.now()
		due := NextDueDate(rec.NextDueDate, now, s.policy.Cycle)
		status := dbm.SubStatusActive
		patch := dbm.SubscriptionPatch{
			Status:        &status,
			NextDueDate:   &due,
			PaymentMethod: &c.Method,
			IsRecurrent:   &c.Recurrent,
			LastPaymentID: &c.ChargeID,
			Meta:          auditMeta("payment", string(c.Method), now),
		}

		err = s.store.UpdateSubscription(ctx, c.MerchantID, rec.Version, patch)
		if errors.Is(err, utils.ErrStaleSubscription) {
			log.Debug().Int("attempt", attempt).Str("merchant_id", c.MerchantID.String()).Msg("subscription changed, retrying payment write")
			continue
		}
		if err != nil {
			return nil, errors.Join(utils.ErrDatabaseError, err)
		}

		merchant.Subscription = patch.Apply(rec)
		merchant.Subscription.Version = rec.Version + 1
		s.afterPayment(ctx, *merchant, rec.Status, c, now)
		return merchant, nil
	}

	return nil, utils.ErrStaleSubscription
}

func (s *SubscriptionService) afterPayment(ctx context.Context, merchant dbm.Merchant, from dbm.SubscriptionStatus, c PaymentConfirmation, now time.Time) {
	paymentsApplied.WithLabelValues(string(c.Method)).Inc()
	log.Info().
		Str("merchant_id", merchant.ID.String()).
		Str("charge_id", c.ChargeID).
		Str("method", string(c.Method)).
		Time("next_due_date", *merchant.Subscription.NextDueDate).
		Msg("payment applied")

	if from != dbm.SubStatusActive {
		err := s.events.PublishStatusChanged(ctx, StatusChangedEvent{
			MerchantID:  merchant.ID,
			From:        from,
			To:          dbm.SubStatusActive,
			NextDueDate: merchant.Subscription.NextDueDate,
			Source:      "payment",
			OccurredAt:  now.UTC(),
		})
		if err != nil {
			log.Warn().Err(err).Str("merchant_id", merchant.ID.String()).Msg("publish status change failed")
		}
	}

	if err := s.mailer.SendPaymentReceipt(merchant, s.policy.Price, c.Method, c.ChargeID); err != nil {
		log.Warn().Err(err).Str("merchant_id", merchant.ID.String()).Msg("payment receipt failed")
	}
}
