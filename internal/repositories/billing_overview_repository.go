package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	dbm "zapmenu/internal/models/db_models"
)

type BillingOverviewRepository interface {
	CountByStatus(ctx context.Context) (map[dbm.SubscriptionStatus]int64, error)
	// ListDueBetween returns merchants whose due date falls in [start, end), earliest first.
	ListDueBetween(ctx context.Context, start, end time.Time, limit int) ([]dbm.Merchant, error)
}

type billingOverviewRepository struct {
	db *gorm.DB
}

func NewBillingOverviewRepository(db *gorm.DB) BillingOverviewRepository {
	return &billingOverviewRepository{db: db}
}

type statusCountRow struct {
	Status string `gorm:"column:status"`
	Count  int64  `gorm:"column:count"`
}

func (r *billingOverviewRepository) CountByStatus(ctx context.Context) (map[dbm.SubscriptionStatus]int64, error) {
	var rows []statusCountRow
	err := r.db.WithContext(ctx).Model(&dbm.Merchant{}).
		Select("billing_status AS status, COUNT(*) AS count").
		Group("billing_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[dbm.SubscriptionStatus]int64, len(rows))
	for _, row := range rows {
		out[dbm.SubscriptionStatus(row.Status)] = row.Count
	}
	return out, nil
}

func (r *billingOverviewRepository) ListDueBetween(ctx context.Context, start, end time.Time, limit int) ([]dbm.Merchant, error) {
	var merchants []dbm.Merchant
	err := r.db.WithContext(ctx).
		Where("billing_next_due_date >= ? AND billing_next_due_date < ?", start.UTC(), end.UTC()).
		Order("billing_next_due_date ASC").
		Limit(limit).
		Find(&merchants).Error
	if err != nil {
		return nil, err
	}
	return merchants, nil
}
