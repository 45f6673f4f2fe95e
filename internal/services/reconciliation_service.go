package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	dbm "zapmenu/internal/models/db_models"
	"zapmenu/internal/repositories"
	"zapmenu/pkg/utils"
)

// Evaluate derives the status a record should have at now. It only ever
// downgrades: trial/active -> overdue -> suspended.
func Evaluate(rec dbm.SubscriptionRecord, now time.Time, policy BillingPolicy) (dbm.SubscriptionStatus, bool) {
	if rec.NextDueDate == nil {
		return rec.Status, false
	}

	elapsed := now.Sub(*rec.NextDueDate)
	if elapsed <= 0 {
		return rec.Status, false
	}

	diffDays := int(math.Ceil(float64(elapsed) / float64(day)))
	target := dbm.SubStatusOverdue
	if diffDays > policy.GraceDays {
		target = dbm.SubStatusSuspended
	}

	if severity(target) <= severity(rec.Status) {
		return rec.Status, false
	}
	return target, true
}

func severity(s dbm.SubscriptionStatus) int {
	switch s {
	case dbm.SubStatusOverdue:
		return 1
	case dbm.SubStatusSuspended:
		return 2
	default:
		return 0
	}
}

type ReconcileResult struct {
	MerchantID uuid.UUID
	From       dbm.SubscriptionStatus
	To         dbm.SubscriptionStatus
	// Evaluated is the status the record should have now, stored or not.
	Evaluated dbm.SubscriptionStatus
	Changed   bool
	// WriteFailed is set when a transition was due but could not be stored.
	WriteFailed bool
}

type SweepReport struct {
	Scanned     int `json:"scanned"`
	Transitions int `json:"transitions"`
	Failures    int `json:"failures"`
}

type ReconciliationServiceInterface interface {
	Reconcile(ctx context.Context, merchantID uuid.UUID) (*ReconcileResult, error)
	// ReconcileRecord evaluates an already loaded merchant and updates it in
	// place when a transition is stored.
	ReconcileRecord(ctx context.Context, merchant *dbm.Merchant) ReconcileResult
	Sweep(ctx context.Context) (SweepReport, error)
}

type ReconciliationService struct {
	store     repositories.BillingStore
	policy    BillingPolicy
	events    BillingEventPublisher
	mailer    BillingMailer
	batchSize int
	now       func() time.Time
}

func NewReconciliationService(
	store repositories.BillingStore,
	policy BillingPolicy,
	events BillingEventPublisher,
	mailer BillingMailer,
	batchSize int,
) *ReconciliationService {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &ReconciliationService{
		store:     store,
		policy:    policy,
		events:    events,
		mailer:    mailer,
		batchSize: batchSize,
		now:       time.Now,
	}
}

func (r *ReconciliationService) Reconcile(ctx context.Context, merchantID uuid.UUID) (*ReconcileResult, error) {
	merchant, err := loadMerchant(ctx, r.store, merchantID)
	if err != nil {
		return nil, err
	}

	res := r.ReconcileRecord(ctx, merchant)
	return &res, nil
}

func (r *ReconciliationService) ReconcileRecord(ctx context.Context, merchant *dbm.Merchant) ReconcileResult {
	now := r.now()
	rec := merchant.Subscription
	res := ReconcileResult{MerchantID: merchant.ID, From: rec.Status, To: rec.Status, Evaluated: rec.Status}

	target, ok := Evaluate(rec, now, r.policy)
	if !ok {
		return res
	}
	res.Evaluated = target

	patch := dbm.SubscriptionPatch{
		Status: &target,
		Meta:   auditMeta("reconciliation", "system", now),
	}
	if err := r.store.UpdateSubscription(ctx, merchant.ID, rec.Version, patch); err != nil {
		// Swallowed; the next evaluation retries from scratch.
		log.Warn().Err(err).
			Str("merchant_id", merchant.ID.String()).
			Str("from", string(rec.Status)).
			Str("to", string(target)).
			Msg("reconciliation write failed")
		res.WriteFailed = true
		return res
	}

	merchant.Subscription = patch.Apply(rec)
	merchant.Subscription.Version = rec.Version + 1
	res.To = target
	res.Changed = true

	billingTransitions.WithLabelValues(string(rec.Status), string(target)).Inc()
	log.Info().
		Str("merchant_id", merchant.ID.String()).
		Str("from", string(rec.Status)).
		Str("to", string(target)).
		Msg("subscription downgraded")

	r.notify(ctx, *merchant, rec.Status, target, now)
	return res
}

func (r *ReconciliationService) notify(ctx context.Context, merchant dbm.Merchant, from, to dbm.SubscriptionStatus, now time.Time) {
	err := r.events.PublishStatusChanged(ctx, StatusChangedEvent{
		MerchantID:  merchant.ID,
		From:        from,
		To:          to,
		NextDueDate: merchant.Subscription.NextDueDate,
		Source:      "reconciliation",
		OccurredAt:  now.UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Str("merchant_id", merchant.ID.String()).Msg("publish status change failed")
	}

	if err := r.mailer.SendDowngradeNotice(merchant, to); err != nil {
		log.Warn().Err(err).Str("merchant_id", merchant.ID.String()).Msg("downgrade notice failed")
	}
}

// Sweep evaluates every merchant whose due date has passed, page by page.
func (r *ReconciliationService) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := r.now()
	after := uuid.Nil
	started := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		page, err := r.store.ListDueForReconciliation(ctx, now, after, r.batchSize)
		if err != nil {
			return report, errors.Join(utils.ErrDatabaseError, err)
		}

		for i := range page {
			report.Scanned++
			res := r.ReconcileRecord(ctx, &page[i])
			if res.Changed {
				report.Transitions++
			}
			if res.WriteFailed {
				report.Failures++
			}
		}

		if len(page) < r.batchSize {
			break
		}
		after = page[len(page)-1].ID
	}

	log.Info().
		Int("scanned", report.Scanned).
		Int("transitions", report.Transitions).
		Int("failures", report.Failures).
		Dur("took", time.Since(started)).
		Msg("reconciliation sweep finished")
	return report, nil
}
