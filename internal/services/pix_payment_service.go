package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	dbm "zapmenu/internal/models/db_models"
	mem "zapmenu/pkg/memcache"
	"zapmenu/pkg/utils"
)

type PixSessionState string

const (
	PixStatePolling   PixSessionState = "polling"
	PixStateConfirmed PixSessionState = "confirmed"
	PixStateExpired   PixSessionState = "expired"
	PixStateStopped   PixSessionState = "stopped"
)

// sessionRetention keeps finished sessions readable for clients that poll
// the session view after the fact.
const sessionRetention = time.Hour

// PixSessionView is a snapshot of a PIX session.
type PixSessionView struct {
	ID            string
	MerchantID    uuid.UUID
	ChargeID      string
	State         PixSessionState
	QRCodeImage   string
	QRCodePayload string
	ExpiresAt     time.Time
	ConfirmedAt   *time.Time

	done <-chan struct{}
}

// Done is closed once the session stops polling, whatever the outcome.
func (v *PixSessionView) Done() <-chan struct{} {
	return v.done
}

type pixSession struct {
	id         string
	merchantID uuid.UUID
	chargeID   string
	qr         PixQRCode
	expiresAt  time.Time
	cancel     context.CancelFunc
	done       chan struct{}

	// mu guards state and serialises the confirmation write with Stop.
	mu          sync.Mutex
	state       PixSessionState
	confirmedAt *time.Time
}

func (p *pixSession) view() *PixSessionView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &PixSessionView{
		ID:            p.id,
		MerchantID:    p.merchantID,
		ChargeID:      p.chargeID,
		State:         p.state,
		QRCodeImage:   p.qr.EncodedImage,
		QRCodePayload: p.qr.Payload,
		ExpiresAt:     p.expiresAt,
		ConfirmedAt:   p.confirmedAt,
		done:          p.done,
	}
}

// finishLocked leaves the polling state. Callers hold p.mu.
func (p *pixSession) finishLocked(state PixSessionState) bool {
	if p.state != PixStatePolling {
		return false
	}
	p.state = state
	p.cancel()
	close(p.done)
	pixSessionsActive.Dec()
	return true
}

type PixPaymentServiceInterface interface {
	Start(ctx context.Context, merchantID uuid.UUID) (*PixSessionView, error)
	CheckNow(ctx context.Context, merchantID uuid.UUID, sessionID string) (*PixSessionView, error)
	Stop(merchantID uuid.UUID, sessionID string) error
	Get(merchantID uuid.UUID, sessionID string) (*PixSessionView, error)
}

type PixPaymentService struct {
	gateway       PaymentGateway
	customers     CustomerServiceInterface
	subscriptions SubscriptionServiceInterface
	sessions      *mem.SessionStore[*pixSession]
	policy        BillingPolicy
	pollInterval  time.Duration
	sessionTTL    time.Duration
	now           func() time.Time
}

func NewPixPaymentService(
	gateway PaymentGateway,
	customers CustomerServiceInterface,
	subscriptions SubscriptionServiceInterface,
	policy BillingPolicy,
	pollInterval, sessionTTL time.Duration,
) *PixPaymentService {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	return &PixPaymentService{
		gateway:       gateway,
		customers:     customers,
		subscriptions: subscriptions,
		sessions:      mem.NewSessionStore[*pixSession](),
		policy:        policy,
		pollInterval:  pollInterval,
		sessionTTL:    sessionTTL,
		now:           time.Now,
	}
}

func (s *PixPaymentService) Start(ctx context.Context, merchantID uuid.UUID) (*PixSessionView, error) {
	owner := merchantID.String()
	if prev, ok := s.sessions.Current(owner); ok {
		s.retire(ctx, prev)
	}

	customerID, err := s.customers.GetOrCreateCustomer(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	charge, err := s.gateway.CreateCharge(ctx, ChargeRequest{
		CustomerID:        customerID,
		Method:            dbm.PaymentMethodPix,
		Amount:            s.policy.Price,
		DueDate:           now,
		Description:       fmt.Sprintf("ZapMenu subscription (%s %s)", s.policy.Currency, s.policy.Price.StringFixed(2)),
		ExternalReference: owner,
	})
	if err != nil {
		return nil, err
	}

	qr, err := s.gateway.GetPixQRCode(ctx, charge.ID)
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithTimeout(context.Background(), s.sessionTTL)
	sess := &pixSession{
		id:         uuid.NewString(),
		merchantID: merchantID,
		chargeID:   charge.ID,
		qr:         *qr,
		expiresAt:  now.Add(s.sessionTTL),
		cancel:     cancel,
		done:       make(chan struct{}),
		state:      PixStatePolling,
	}
	pixSessionsActive.Inc()

	if prev, replaced := s.sessions.Put(sess.id, owner, sess, s.sessionTTL+sessionRetention); replaced {
		// a concurrent Start for the same merchant registered first
		s.retire(ctx, prev)
	}

	log.Info().
		Str("merchant_id", owner).
		Str("session_id", sess.id).
		Str("charge_id", charge.ID).
		Time("expires_at", sess.expiresAt).
		Msg("pix session started")

	go s.poll(pollCtx, sess)
	return sess.view(), nil
}

func (s *PixPaymentService) poll(ctx context.Context, sess *pixSession) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && s.finish(sess, PixStateExpired) {
				log.Info().Str("session_id", sess.id).Str("merchant_id", sess.merchantID.String()).Msg("pix session expired")
			}
			return
		case <-ticker.C:
			if _, err := s.check(ctx, sess); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Str("session_id", sess.id).Str("charge_id", sess.chargeID).Msg("pix status check failed")
			}
		}
	}
}

// check asks the gateway once and applies the payment when it is confirmed.
func (s *PixPaymentService) check(ctx context.Context, sess *pixSession) (bool, error) {
	status, err := s.gateway.GetChargeStatus(ctx, sess.chargeID)
	if err != nil {
		return false, err
	}
	if status != ChargeStatusConfirmed {
		return false, nil
	}
	return s.confirm(ctx, sess)
}

func (s *PixPaymentService) confirm(ctx context.Context, sess *pixSession) (bool, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != PixStatePolling {
		return sess.state == PixStateConfirmed, nil
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	_, err := s.subscriptions.ApplyPayment(writeCtx, PaymentConfirmation{
		MerchantID: sess.merchantID,
		ChargeID:   sess.chargeID,
		Method:     dbm.PaymentMethodPix,
	})
	if err != nil {
		// stays polling; the next tick tries again and the write is idempotent
		return false, fmt.Errorf("apply pix payment: %w", err)
	}

	at := s.now().UTC()
	sess.confirmedAt = &at
	sess.finishLocked(PixStateConfirmed)
	log.Info().Str("session_id", sess.id).Str("merchant_id", sess.merchantID.String()).Msg("pix payment confirmed")
	return true, nil
}

// retire stops a replaced session after one last status check, so a QR code
// paid just before the restart is still applied.
func (s *PixPaymentService) retire(ctx context.Context, sess *pixSession) {
	if sess.view().State == PixStatePolling {
		if _, err := s.check(ctx, sess); err != nil {
			log.Warn().Err(err).Str("session_id", sess.id).Str("charge_id", sess.chargeID).Msg("final pix status check failed")
		}
	}
	s.finish(sess, PixStateStopped)
}

func (s *PixPaymentService) finish(sess *pixSession, state PixSessionState) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.finishLocked(state)
}

func (s *PixPaymentService) lookup(merchantID uuid.UUID, sessionID string) (*pixSession, error) {
	sess, ok := s.sessions.Get(sessionID, merchantID.String())
	if !ok {
		return nil, utils.ErrSessionNotFound
	}
	return sess, nil
}

// CheckNow runs one status check out of cycle ("I already paid").
func (s *PixPaymentService) CheckNow(ctx context.Context, merchantID uuid.UUID, sessionID string) (*PixSessionView, error) {
	sess, err := s.lookup(merchantID, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.view().State == PixStatePolling {
		if _, err := s.check(ctx, sess); err != nil {
			return nil, err
		}
	}
	return sess.view(), nil
}

// Stop cancels the session. Once it returns the session writes nothing.
func (s *PixPaymentService) Stop(merchantID uuid.UUID, sessionID string) error {
	sess, err := s.lookup(merchantID, sessionID)
	if err != nil {
		return err
	}
	if s.finish(sess, PixStateStopped) {
		log.Info().Str("session_id", sess.id).Str("merchant_id", merchantID.String()).Msg("pix session stopped")
	}
	return nil
}

func (s *PixPaymentService) Get(merchantID uuid.UUID, sessionID string) (*PixSessionView, error) {
	sess, err := s.lookup(merchantID, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.view(), nil
}

// Close stops every polling session. Used on shutdown.
func (s *PixPaymentService) Close() {
	s.sessions.Range(func(_ string, sess *pixSession) {
		s.finish(sess, PixStateStopped)
	})
	s.sessions.Evict()
}

// EvictFinished forgets sessions past their retention.
func (s *PixPaymentService) EvictFinished() int {
	return s.sessions.Evict()
}
