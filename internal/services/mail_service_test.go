package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapmenu/internal/config"
	dbm "zapmenu/internal/models/db_models"
)

func TestNewBillingMailer_DisabledWithoutHost(t *testing.T) {
	mailer := NewBillingMailer(config.SMTPConfig{})
	_, ok := mailer.(noopMailer)
	require.True(t, ok)

	m := dbm.Merchant{Email: "owner@example.com"}
	assert.NoError(t, mailer.SendPaymentReceipt(m, decimal.NewFromInt(50), dbm.PaymentMethodPix, "pay_1"))
	assert.NoError(t, mailer.SendDowngradeNotice(m, dbm.SubStatusSuspended))
}

func TestSMTPBillingMailer_SkipsWithoutRecipient(t *testing.T) {
	mailer := NewBillingMailer(config.SMTPConfig{Host: "smtp.invalid", Port: 587, From: "no-reply@zapmenu.app"})

	// no address on file, so nothing is dialled
	m := dbm.Merchant{Name: "Ana"}
	assert.NoError(t, mailer.SendPaymentReceipt(m, decimal.NewFromInt(50), dbm.PaymentMethodCreditCard, "pay_1"))
	assert.NoError(t, mailer.SendDowngradeNotice(dbm.Merchant{Email: "owner@example.com"}, dbm.SubStatusActive))
}

func TestBillingTemplates_Render(t *testing.T) {
	mailer := NewBillingMailer(config.SMTPConfig{Host: "smtp.invalid", BaseURL: "https://app.zapmenu.test/", AppName: "ZapMenu"}).(*smtpBillingMailer)
	data := billingEmail{
		Title:     "Payment received",
		Lines:     []string{"We received your PIX payment of R$ 50.00."},
		ButtonURL: mailer.billingURL(),
		ButtonTxt: "View subscription",
		AppName:   "ZapMenu",
		Year:      2025,
	}

	var html, text bytes.Buffer
	require.NoError(t, mailer.htmlTpl.Execute(&html, data))
	require.NoError(t, mailer.textTpl.Execute(&text, data))

	assert.Equal(t, "https://app.zapmenu.test/billing", data.ButtonURL)
	assert.Contains(t, html.String(), "Payment received")
	assert.Contains(t, html.String(), "https://app.zapmenu.test/billing")
	assert.Contains(t, text.String(), "R$ 50.00")
}

func TestMethodLabel(t *testing.T) {
	assert.Equal(t, "credit card", methodLabel(dbm.PaymentMethodCreditCard))
	assert.Equal(t, "PIX", methodLabel(dbm.PaymentMethodPix))
}

func TestLogEventPublisher(t *testing.T) {
	p := NewLogEventPublisher()
	err := p.PublishStatusChanged(context.Background(), StatusChangedEvent{
		MerchantID: uuid.New(),
		From:       dbm.SubStatusActive,
		To:         dbm.SubStatusOverdue,
		Source:     "reconcile",
		OccurredAt: testNow,
	})
	assert.NoError(t, err)
	assert.NoError(t, p.Close())
}
