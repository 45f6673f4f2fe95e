package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbm "zapmenu/internal/models/db_models"
	"zapmenu/pkg/utils"
)

func validCard() CardPaymentInput {
	return CardPaymentInput{
		HolderName:    "Maria Souza",
		Number:        "5162 3060 0000 0001",
		ExpiryMonth:   "7",
		ExpiryYear:    "30",
		CVV:           "318",
		Document:      "123.456.789-09",
		Email:         "maria@bella.com.br",
		Phone:         "(11) 98888-7777",
		PostalCode:    "01310-100",
		AddressNumber: "100",
		RemoteIP:      "203.0.113.7",
	}
}

func validateCard(in CardPaymentInput) error {
	_, _, err := normalizeCard(in, testNow)
	return err
}

func TestNormalizeCard(t *testing.T) {
	require.NoError(t, validateCard(validCard()))

	tests := []struct {
		name  string
		edit  func(*CardPaymentInput)
		field string
	}{
		{"missing holder", func(in *CardPaymentInput) { in.HolderName = "  " }, "holder_name"},
		{"short number", func(in *CardPaymentInput) { in.Number = "4111 1111" }, "number"},
		{"month 13", func(in *CardPaymentInput) { in.ExpiryMonth = "13" }, "expiry_month"},
		{"three digit year", func(in *CardPaymentInput) { in.ExpiryYear = "203" }, "expiry_year"},
		{"expired last year", func(in *CardPaymentInput) { in.ExpiryYear = "2024" }, "expiry_year"},
		{"expired last month", func(in *CardPaymentInput) { in.ExpiryYear = "25"; in.ExpiryMonth = "2" }, "expiry_year"},
		{"cvv letters", func(in *CardPaymentInput) { in.CVV = "12a" }, "cvv"},
		{"document length", func(in *CardPaymentInput) { in.Document = "1234" }, "document"},
		{"postal code", func(in *CardPaymentInput) { in.PostalCode = "0131" }, "postal_code"},
		{"address number", func(in *CardPaymentInput) { in.AddressNumber = "" }, "address_number"},
		{"email", func(in *CardPaymentInput) { in.Email = "maria" }, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCard()
			tt.edit(&in)

			err := validateCard(in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.FieldErrors(), tt.field)
			assert.Len(t, verr.FieldErrors(), 1)
		})
	}
}

func TestNormalizeCard_CurrentMonthIsValid(t *testing.T) {
	in := validCard()
	in.ExpiryMonth = "03"
	in.ExpiryYear = "2025"
	assert.NoError(t, validateCard(in))
}

func TestCardPay_InvalidInputNeverReachesGateway(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusOverdue, ptrTime(testNow.Add(-2*day)))
	in := validCard()
	in.CVV = ""
	in.Document = ""

	_, err := h.cards.Pay(context.Background(), m.ID, in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
	assert.Equal(t, int32(0), h.gateway.customerCalls)
	assert.Equal(t, 0, h.gateway.chargeCount())
	assert.Equal(t, 0, h.store.writeCount())
}

func TestCardPay_OneTimeCharge(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusOverdue, ptrTime(testNow.Add(-2*day)))

	res, err := h.cards.Pay(context.Background(), m.ID, validCard())
	require.NoError(t, err)
	assert.Equal(t, "pay_1", res.PaymentID)
	assert.False(t, res.Recurrent)

	require.Equal(t, 1, h.gateway.chargeCount())
	req := h.gateway.charges[0]
	assert.Equal(t, dbm.PaymentMethodCreditCard, req.Method)
	assert.Equal(t, "5162306000000001", req.Card.Number)
	assert.Equal(t, "07", req.Card.ExpiryMonth)
	assert.Equal(t, "2030", req.Card.ExpiryYear)
	assert.Equal(t, "12345678909", req.Holder.Document)
	assert.Equal(t, "01310100", req.Holder.PostalCode)
	assert.Equal(t, "203.0.113.7", req.RemoteIP)
	assert.True(t, req.Amount.Equal(h.policy.Price))

	stored := h.store.get(m.ID).Subscription
	assert.Equal(t, dbm.SubStatusActive, stored.Status)
	assert.Equal(t, dbm.PaymentMethodCreditCard, stored.PaymentMethod)
	assert.Equal(t, testNow.Add(30*day), *stored.NextDueDate)
	assert.False(t, stored.IsRecurrent)
}

func TestCardPay_Recurrent(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusActive, ptrTime(testNow.Add(3*day)))
	in := validCard()
	in.Recurrent = true

	res, err := h.cards.Pay(context.Background(), m.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "sub_1", res.PaymentID)
	assert.Len(t, h.gateway.subscriptions, 1)
	assert.Equal(t, 0, h.gateway.chargeCount())

	stored := h.store.get(m.ID).Subscription
	assert.True(t, stored.IsRecurrent)
	assert.Equal(t, testNow.Add(33*day), *stored.NextDueDate)
}

func TestCardPay_RejectionLeavesRecordUntouched(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusOverdue, ptrTime(testNow.Add(-2*day)))
	h.gateway.chargeErr = &GatewayError{Operation: "create_charge", StatusCode: 400, Code: "invalid_creditCard", Description: "Cartão recusado"}

	_, err := h.cards.Pay(context.Background(), m.ID, validCard())
	require.Error(t, err)
	assert.True(t, IsGatewayRejection(err))
	assert.Equal(t, 0, h.store.writeCount())
	assert.Equal(t, dbm.SubStatusOverdue, h.store.get(m.ID).Subscription.Status)
}

func TestCardPay_TransportFailureLeavesRecordUntouched(t *testing.T) {
	h := newHarness(testNow)
	m := h.store.add(dbm.SubStatusOverdue, ptrTime(testNow.Add(-2*day)))
	h.gateway.chargeErr = fmt.Errorf("%w: create_charge: %v", utils.ErrGatewayUnavailable, errors.New("i/o timeout"))

	_, err := h.cards.Pay(context.Background(), m.ID, validCard())
	assert.ErrorIs(t, err, utils.ErrGatewayUnavailable)
	assert.False(t, IsGatewayRejection(err))
	assert.Equal(t, 0, h.store.writeCount())
}
