package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbm "zapmenu/internal/models/db_models"
)

func TestGetOrCreateCustomer_CreatesOnce(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusTrial, nil)

	first, err := h.customers.GetOrCreateCustomer(context.Background(), m.ID)
	require.NoError(t, err)
	second, err := h.customers.GetOrCreateCustomer(context.Background(), m.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), h.gateway.customerCalls)
	assert.Equal(t, first, h.store.get(m.ID).Subscription.ExternalCustomerID)
}

func TestGetOrCreateCustomer_ConcurrentCallersShareOneCreate(t *testing.T) {
	h := newHarness(testNow)
	h.gateway.customerDelay = 20 * time.Millisecond
	m := h.store.add(dbm.SubStatusTrial, nil)

	const callers = 8
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := h.customers.GetOrCreateCustomer(context.Background(), m.ID)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, ids[0], h.store.get(m.ID).Subscription.ExternalCustomerID)
	assert.Equal(t, int32(1), h.gateway.customerCalls)
}

func TestGetOrCreateCustomer_KeepsStoredWinner(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusTrial, nil)

	// another instance persisted its customer first
	_, err := h.store.SetExternalCustomerID(context.Background(), m.ID, "cus_other")
	require.NoError(t, err)

	id, err := h.customers.GetOrCreateCustomer(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_other", id)
	assert.Equal(t, int32(0), h.gateway.customerCalls)
}
