package services

import (
	"context"
	"errors"
	"time"

	dbm "zapmenu/internal/models/db_models"
	resp "zapmenu/internal/models/response_models"
	"zapmenu/internal/repositories"
	"zapmenu/pkg/utils"
)

const (
	overviewWindow   = 7 * day
	overviewDueLimit = 100
)

type BillingOverviewService interface {
	Overview(ctx context.Context) (*resp.BillingOverviewResponse, error)
}

type billingOverviewService struct {
	repo repositories.BillingOverviewRepository
	now  func() time.Time
}

func NewBillingOverviewService(repo repositories.BillingOverviewRepository) BillingOverviewService {
	return &billingOverviewService{repo: repo, now: time.Now}
}

func (s *billingOverviewService) Overview(ctx context.Context) (*resp.BillingOverviewResponse, error) {
	now := s.now().UTC()

	// ---------- Counts per status ----------
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, errors.Join(utils.ErrDatabaseError, err)
	}

	out := &resp.BillingOverviewResponse{
		GeneratedAt:  now,
		Counts:       make(map[string]int64, 4),
		DueNext7Days: []resp.MerchantDueSummary{},
	}
	for _, st := range []dbm.SubscriptionStatus{dbm.SubStatusTrial, dbm.SubStatusActive, dbm.SubStatusOverdue, dbm.SubStatusSuspended} {
		out.Counts[string(st)] = counts[st]
	}
	for _, n := range counts {
		out.Total += n
	}

	// ---------- Due soon ----------
	due, err := s.repo.ListDueBetween(ctx, now, now.Add(overviewWindow), overviewDueLimit)
	if err != nil {
		return nil, errors.Join(utils.ErrDatabaseError, err)
	}
	for _, m := range due {
		if m.Subscription.NextDueDate == nil {
			continue
		}
		out.DueNext7Days = append(out.DueNext7Days, resp.MerchantDueSummary{
			MerchantID:  m.ID.String(),
			Name:        m.Name,
			Status:      string(m.Subscription.Status),
			NextDueDate: *m.Subscription.NextDueDate,
			IsVip:       m.Subscription.DisplayVip(),
		})
	}

	return out, nil
}
