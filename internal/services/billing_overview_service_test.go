package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbm "zapmenu/internal/models/db_models"
	"zapmenu/pkg/utils"
)

type stubOverviewRepo struct {
	counts     map[dbm.SubscriptionStatus]int64
	due        []dbm.Merchant
	start, end time.Time
	err        error
}

func (s *stubOverviewRepo) CountByStatus(context.Context) (map[dbm.SubscriptionStatus]int64, error) {
	return s.counts, s.err
}

func (s *stubOverviewRepo) ListDueBetween(_ context.Context, start, end time.Time, _ int) ([]dbm.Merchant, error) {
	s.start, s.end = start, end
	return s.due, nil
}

func TestOverview(t *testing.T) {
	m := dbm.Merchant{Name: "Bella", Subscription: dbm.SubscriptionRecord{
		Status:      dbm.SubStatusActive,
		NextDueDate: ptrTime(testNow.Add(2 * day)),
	}}
	m.ID = uuid.New()
	repo := &stubOverviewRepo{
		counts: map[dbm.SubscriptionStatus]int64{dbm.SubStatusActive: 3, dbm.SubStatusSuspended: 1},
		due:    []dbm.Merchant{m},
	}
	svc := NewBillingOverviewService(repo).(*billingOverviewService)
	svc.now = fixedClock(testNow)

	out, err := svc.Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), out.Total)
	assert.Equal(t, int64(3), out.Counts["active"])
	assert.Equal(t, int64(0), out.Counts["trial"])
	require.Len(t, out.DueNext7Days, 1)
	assert.Equal(t, m.ID.String(), out.DueNext7Days[0].MerchantID)
	assert.Equal(t, testNow, repo.start)
	assert.Equal(t, testNow.Add(7*day), repo.end)
}

func TestOverview_StoreFailure(t *testing.T) {
	svc := NewBillingOverviewService(&stubOverviewRepo{err: errors.New("boom")})
	_, err := svc.Overview(context.Background())
	assert.ErrorIs(t, err, utils.ErrDatabaseError)
}
