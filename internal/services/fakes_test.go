package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbm "zapmenu/internal/models/db_models"
	"zapmenu/internal/repositories"
	"zapmenu/pkg/utils"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func ptrTime(t time.Time) *time.Time { return &t }

// memoryStore is an in-memory BillingStore with the same CAS rules as the
// gorm store.
type memoryStore struct {
	mu        sync.Mutex
	merchants map[uuid.UUID]dbm.Merchant

	updateErr error
	findErr   error
	writes    int
	forced    int
}

var _ repositories.BillingStore = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{merchants: map[uuid.UUID]dbm.Merchant{}}
}

func (s *memoryStore) add(status dbm.SubscriptionStatus, due *time.Time) dbm.Merchant {
	m := dbm.Merchant{
		Name:          "Pizzaria Bella",
		Email:         "owner@bella.com.br",
		Document:      "12345678909",
		PostalCode:    "01310100",
		AddressNumber: "100",
		Subscription:  dbm.SubscriptionRecord{Status: status, NextDueDate: due},
	}
	m.ID = uuid.New()
	s.mu.Lock()
	s.merchants[m.ID] = m
	s.mu.Unlock()
	return m
}

func (s *memoryStore) get(id uuid.UUID) dbm.Merchant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merchants[id]
}

func (s *memoryStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memoryStore) CreateMerchant(_ context.Context, merchant *dbm.Merchant) error {
	merchant.Stamp(testNow)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchants[merchant.ID] = *merchant
	return nil
}

func (s *memoryStore) DeleteMerchant(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.merchants, id)
	return nil
}

func (s *memoryStore) FindMerchant(_ context.Context, id uuid.UUID) (*dbm.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	m, ok := s.merchants[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *memoryStore) UpdateProfile(_ context.Context, id uuid.UUID, p repositories.MerchantProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.merchants[id]
	if !ok {
		return utils.ErrMerchantNotFound
	}
	m.Name, m.Email, m.Document, m.Phone, m.PostalCode, m.AddressNumber = p.Name, p.Email, p.Document, p.Phone, p.PostalCode, p.AddressNumber
	s.merchants[id] = m
	return nil
}

func (s *memoryStore) UpdateSubscription(_ context.Context, id uuid.UUID, expectedVersion int64, patch dbm.SubscriptionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	m, ok := s.merchants[id]
	if !ok {
		return utils.ErrMerchantNotFound
	}
	if m.Subscription.Version != expectedVersion {
		return utils.ErrStaleSubscription
	}
	m.Subscription = patch.Apply(m.Subscription)
	m.Subscription.Version++
	s.merchants[id] = m
	s.writes++
	return nil
}

func (s *memoryStore) ForceUpdateSubscription(_ context.Context, id uuid.UUID, patch dbm.SubscriptionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.merchants[id]
	if !ok {
		return utils.ErrMerchantNotFound
	}
	m.Subscription = patch.Apply(m.Subscription)
	m.Subscription.Version++
	s.merchants[id] = m
	s.forced++
	return nil
}

func (s *memoryStore) SetExternalCustomerID(_ context.Context, id uuid.UUID, customerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.merchants[id]
	if !ok {
		return "", utils.ErrMerchantNotFound
	}
	if m.Subscription.ExternalCustomerID == "" {
		m.Subscription.ExternalCustomerID = customerID
		m.Subscription.Version++
		s.merchants[id] = m
	}
	return m.Subscription.ExternalCustomerID, nil
}

func (s *memoryStore) ListDueForReconciliation(_ context.Context, now time.Time, afterID uuid.UUID, limit int) ([]dbm.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []dbm.Merchant
	for _, m := range s.merchants {
		due := m.Subscription.NextDueDate
		if due == nil || !due.Before(now) || m.Subscription.Status == dbm.SubStatusSuspended {
			continue
		}
		if m.ID.String() <= afterID.String() {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeGateway records calls and answers from its fields.
type fakeGateway struct {
	mu sync.Mutex

	customerCalls int32
	customerDelay time.Duration
	charges       []ChargeRequest
	subscriptions []SubscriptionRequest
	statusCalls   int32

	chargeErr error
	status    ChargeStatus
	statusErr error
}

func (g *fakeGateway) CreateCustomer(_ context.Context, profile CustomerProfile) (string, error) {
	n := atomic.AddInt32(&g.customerCalls, 1)
	if g.customerDelay > 0 {
		time.Sleep(g.customerDelay)
	}
	return fmt.Sprintf("cus_%d", n), nil
}

func (g *fakeGateway) CreateCharge(_ context.Context, req ChargeRequest) (*Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	g.charges = append(g.charges, req)
	return &Charge{ID: fmt.Sprintf("pay_%d", len(g.charges)), Status: ChargeStatusPending}, nil
}

func (g *fakeGateway) GetPixQRCode(_ context.Context, chargeID string) (*PixQRCode, error) {
	return &PixQRCode{EncodedImage: "iVBORw0KGgo=", Payload: "00020126" + chargeID}, nil
}

func (g *fakeGateway) CreateSubscription(_ context.Context, req SubscriptionRequest) (*GatewaySubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	g.subscriptions = append(g.subscriptions, req)
	return &GatewaySubscription{ID: fmt.Sprintf("sub_%d", len(g.subscriptions)), Status: "ACTIVE"}, nil
}

func (g *fakeGateway) GetChargeStatus(_ context.Context, _ string) (ChargeStatus, error) {
	atomic.AddInt32(&g.statusCalls, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return "", g.statusErr
	}
	if g.status == "" {
		return ChargeStatusPending, nil
	}
	return g.status, nil
}

func (g *fakeGateway) setStatus(s ChargeStatus) {
	g.mu.Lock()
	g.status = s
	g.mu.Unlock()
}

func (g *fakeGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []StatusChangedEvent
	err    error
}

func (p *recordingPublisher) PublishStatusChanged(_ context.Context, ev StatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) all() []StatusChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StatusChangedEvent(nil), p.events...)
}

type recordingMailer struct {
	mu         sync.Mutex
	receipts   []string
	downgrades []dbm.SubscriptionStatus
}

func (m *recordingMailer) SendPaymentReceipt(_ dbm.Merchant, _ decimal.Decimal, _ dbm.PaymentMethod, chargeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, chargeID)
	return nil
}

func (m *recordingMailer) SendDowngradeNotice(_ dbm.Merchant, to dbm.SubscriptionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downgrades = append(m.downgrades, to)
	return errors.New("smtp down")
}

// harness wires the billing services over the in-memory store with a fixed clock.
type harness struct {
	store         *memoryStore
	gateway       *fakeGateway
	events        *recordingPublisher
	mailer        *recordingMailer
	policy        BillingPolicy
	reconciler    *ReconciliationService
	subscriptions *SubscriptionService
	customers     CustomerServiceInterface
	cards         *CardPaymentService
	admin         *AdminService
	gate          AccessGateInterface
}

func newHarness(now time.Time) *harness {
	h := &harness{
		store:   newMemoryStore(),
		gateway: &fakeGateway{},
		events:  &recordingPublisher{},
		mailer:  &recordingMailer{},
		policy:  DefaultBillingPolicy(),
	}
	h.reconciler = NewReconciliationService(h.store, h.policy, h.events, h.mailer, 2)
	h.reconciler.now = fixedClock(now)
	h.subscriptions = NewSubscriptionService(h.store, h.reconciler, h.policy, NewLocalLocker(), h.events, h.mailer)
	h.subscriptions.now = fixedClock(now)
	h.customers = NewCustomerService(h.store, h.gateway)
	h.cards = NewCardPaymentService(h.gateway, h.customers, h.subscriptions, h.policy)
	h.cards.now = fixedClock(now)
	h.admin = NewAdminService(h.store, h.events)
	h.admin.now = fixedClock(now)
	h.gate = NewAccessGate(h.store, h.reconciler)
	return h
}
