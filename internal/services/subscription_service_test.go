package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbm "zapmenu/internal/models/db_models"
	"zapmenu/pkg/utils"
)

func TestApplyPayment_OverdueIsReactivatedFromNow(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusOverdue, ptrTime(testNow.Add(-2*day)))

	got, err := h.subscriptions.ApplyPayment(context.Background(), PaymentConfirmation{
		MerchantID: m.ID, ChargeID: "pay_123", Method: dbm.PaymentMethodPix,
	})
	require.NoError(t, err)

	stored := h.store.get(m.ID).Subscription
	assert.Equal(t, dbm.SubStatusActive, stored.Status)
	assert.Equal(t, dbm.PaymentMethodPix, stored.PaymentMethod)
	assert.Equal(t, testNow.Add(30*day), *stored.NextDueDate)
	assert.Equal(t, "pay_123", stored.LastPaymentID)
	assert.Equal(t, stored, got.Subscription)

	events := h.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, dbm.SubStatusOverdue, events[0].From)
	assert.Equal(t, dbm.SubStatusActive, events[0].To)
	assert.Equal(t, []string{"pay_123"}, h.mailer.receipts)
}

func TestApplyPayment_EarlyRenewalKeepsPrepaidDays(t *testing.T) {
	h := newHarness(testNow)
	due := testNow.Add(12 * day)
	m := h.store.add(dbm.SubStatusActive, &due)

	_, err := h.subscriptions.ApplyPayment(context.Background(), PaymentConfirmation{
		MerchantID: m.ID, ChargeID: "pay_1", Method: dbm.PaymentMethodCreditCard, Recurrent: true,
	})
	require.NoError(t, err)

	stored := h.store.get(m.ID).Subscription
	assert.Equal(t, due.Add(30*day), *stored.NextDueDate)
	assert.True(t, stored.IsRecurrent)
	assert.Empty(t, h.events.all())
}

func TestApplyPayment_SameChargeAppliesOnce(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusActive, nil)
	c := PaymentConfirmation{MerchantID: m.ID, ChargeID: "pay_9", Method: dbm.PaymentMethodPix}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.subscriptions.ApplyPayment(context.Background(), c)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.store.writeCount())
	assert.Equal(t, testNow.Add(30*day), *h.store.get(m.ID).Subscription.NextDueDate)
}

func TestApplyPayment_UnknownMerchant(t *testing.T) {
	h := newHarness(testNow)
	_, err := h.subscriptions.ApplyPayment(context.Background(), PaymentConfirmation{MerchantID: uuid.New(), ChargeID: "x"})
	assert.ErrorIs(t, err, utils.ErrMerchantNotFound)
}

func TestGetSubscriptionStatus_ReconcilesFirst(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusActive, ptrTime(testNow.Add(-7*day)))

	view, err := h.subscriptions.GetSubscriptionStatus(context.Background(), m.ID)
	require.NoError(t, err)

	assert.Equal(t, string(dbm.SubStatusSuspended), view.Status)
	assert.False(t, view.CanMutate)
	require.NotNil(t, view.DaysUntilDue)
	assert.Equal(t, -7, *view.DaysUntilDue)
	assert.Equal(t, "49.9", view.Price.String())
}

func TestStatusView_Vip(t *testing.T) {
	m := dbm.Merchant{Subscription: dbm.SubscriptionRecord{
		Status:      dbm.SubStatusActive,
		NextDueDate: ptrTime(dbm.VipDueDate),
	}}
	view := StatusView(m, testNow, DefaultBillingPolicy())
	assert.True(t, view.IsVip)
	assert.True(t, view.CanMutate)
}
