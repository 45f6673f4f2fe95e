package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbm "zapmenu/internal/models/db_models"
	"zapmenu/pkg/utils"
)

func TestCanMutate(t *testing.T) {
	assert.True(t, CanMutate(dbm.SubscriptionRecord{Status: dbm.SubStatusTrial}))
	assert.True(t, CanMutate(dbm.SubscriptionRecord{Status: dbm.SubStatusActive}))
	assert.True(t, CanMutate(dbm.SubscriptionRecord{Status: dbm.SubStatusOverdue}))
	assert.False(t, CanMutate(dbm.SubscriptionRecord{Status: dbm.SubStatusSuspended}))
}

func TestAccessGate_AllowsGraceWindow(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusActive, ptrTime(testNow.Add(-3*day)))

	assert.NoError(t, h.gate.Check(context.Background(), m.ID))
	assert.Equal(t, dbm.SubStatusOverdue, h.store.get(m.ID).Subscription.Status)
}

func TestAccessGate_ReconcilesBeforeDeciding(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusActive, ptrTime(testNow.Add(-6*day)))

	err := h.gate.Check(context.Background(), m.ID)
	assert.ErrorIs(t, err, utils.ErrSubscriptionSuspended)
}

func TestAccessGate_DeniesSuspendedWithoutWriting(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusSuspended, ptrTime(testNow.Add(-20*day)))

	assert.ErrorIs(t, h.gate.Check(context.Background(), m.ID), utils.ErrSubscriptionSuspended)
	assert.Equal(t, 0, h.store.writeCount())
}

func TestAccessGate_UnknownMerchant(t *testing.T) {
	h := newHarness(testNow)
	assert.ErrorIs(t, h.gate.Check(context.Background(), uuid.New()), utils.ErrMerchantNotFound)
}

func TestAccessGate_DeniesWhenDowngradeWriteFails(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusActive, ptrTime(testNow.Add(-10*day)))
	h.store.updateErr = errors.New("connection reset")

	assert.ErrorIs(t, h.gate.Check(context.Background(), m.ID), utils.ErrSubscriptionSuspended)
	assert.Equal(t, dbm.SubStatusActive, h.store.get(m.ID).Subscription.Status)

	view, err := h.subscriptions.GetSubscriptionStatus(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "suspended", view.Status)
	assert.False(t, view.CanMutate)
}

func TestAccessGate_AllowsOverdueWhenWriteFails(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusActive, ptrTime(testNow.Add(-2*day)))
	h.store.updateErr = errors.New("connection reset")

	assert.NoError(t, h.gate.Check(context.Background(), m.ID))
}
