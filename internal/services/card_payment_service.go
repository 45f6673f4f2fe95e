package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	dbm "zapmenu/internal/models/db_models"
)

type CardPaymentInput struct {
	HolderName    string
	Number        string
	ExpiryMonth   string
	ExpiryYear    string
	CVV           string
	Document      string
	Email         string
	Phone         string
	PostalCode    string
	AddressNumber string
	Recurrent     bool
	RemoteIP      string
}

type CardPaymentResult struct {
	PaymentID string
	Recurrent bool
	Merchant  *dbm.Merchant
}

// ValidationError lists every malformed field of a payment form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid payment data: " + strings.Join(keys, ", ")
}

func (e *ValidationError) FieldErrors() map[string]string {
	return e.Fields
}

type CardPaymentServiceInterface interface {
	Pay(ctx context.Context, merchantID uuid.UUID, in CardPaymentInput) (*CardPaymentResult, error)
}

type CardPaymentService struct {
	gateway       PaymentGateway
	customers     CustomerServiceInterface
	subscriptions SubscriptionServiceInterface
	policy        BillingPolicy
	now           func() time.Time
}

func NewCardPaymentService(
	gateway PaymentGateway,
	customers CustomerServiceInterface,
	subscriptions SubscriptionServiceInterface,
	policy BillingPolicy,
) *CardPaymentService {
	return &CardPaymentService{
		gateway:       gateway,
		customers:     customers,
		subscriptions: subscriptions,
		policy:        policy,
		now:           time.Now,
	}
}

func (s *CardPaymentService) Pay(ctx context.Context, merchantID uuid.UUID, in CardPaymentInput) (*CardPaymentResult, error) {
	now := s.now()
	card, holder, err := normalizeCard(in, now)
	if err != nil {
		return nil, err
	}

	customerID, err := s.customers.GetOrCreateCustomer(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("ZapMenu subscription (%s %s)", s.policy.Currency, s.policy.Price.StringFixed(2))
	var paymentID string
	if in.Recurrent {
		sub, err := s.gateway.CreateSubscription(ctx, SubscriptionRequest{
			CustomerID:        customerID,
			Amount:            s.policy.Price,
			NextDueDate:       now,
			Description:       description,
			ExternalReference: merchantID.String(),
			Card:              card,
			Holder:            holder,
			RemoteIP:          in.RemoteIP,
		})
		if err != nil {
			return nil, err
		}
		paymentID = sub.ID
	} else {
		charge, err := s.gateway.CreateCharge(ctx, ChargeRequest{
			CustomerID:        customerID,
			Method:            dbm.PaymentMethodCreditCard,
			Amount:            s.policy.Price,
			DueDate:           now,
			Description:       description,
			ExternalReference: merchantID.String(),
			Card:              &card,
			Holder:            &holder,
			RemoteIP:          in.RemoteIP,
		})
		if err != nil {
			return nil, err
		}
		paymentID = charge.ID
	}

	log.Info().Str("merchant_id", merchantID.String()).Str("charge_id", paymentID).Bool("recurrent", in.Recurrent).Msg("card payment accepted")

	merchant, err := s.subscriptions.ApplyPayment(ctx, PaymentConfirmation{
		MerchantID: merchantID,
		ChargeID:   paymentID,
		Method:     dbm.PaymentMethodCreditCard,
		Recurrent:  in.Recurrent,
	})
	if err != nil {
		// Charged at the provider but not recorded here; needs an operator.
		log.Error().Err(err).Str("merchant_id", merchantID.String()).Str("charge_id", paymentID).Msg("card payment not recorded")
		return nil, err
	}

	return &CardPaymentResult{PaymentID: paymentID, Recurrent: in.Recurrent, Merchant: merchant}, nil
}

// normalizeCard checks the form locally; nothing malformed reaches the gateway.
func normalizeCard(in CardPaymentInput, now time.Time) (CreditCard, CardHolderInfo, error) {
	fields := map[string]string{}

	holderName := strings.TrimSpace(in.HolderName)
	if holderName == "" {
		fields["holder_name"] = "required"
	}

	number := digitsOnly(in.Number)
	if n := len(number); n < 13 || n > 19 {
		fields["number"] = "must have 13 to 19 digits"
	}

	month, monthErr := strconv.Atoi(strings.TrimSpace(in.ExpiryMonth))
	if monthErr != nil || month < 1 || month > 12 {
		fields["expiry_month"] = "must be between 1 and 12"
	}

	yearRaw := strings.TrimSpace(in.ExpiryYear)
	year, yearErr := strconv.Atoi(yearRaw)
	switch {
	case yearErr != nil || (len(yearRaw) != 2 && len(yearRaw) != 4):
		fields["expiry_year"] = "must have 2 or 4 digits"
	default:
		if len(yearRaw) == 2 {
			year += 2000
		}
		if _, bad := fields["expiry_month"]; !bad && expired(year, month, now) {
			fields["expiry_year"] = "card is expired"
		}
	}

	cvv := strings.TrimSpace(in.CVV)
	if n := len(cvv); n < 3 || n > 4 || digitsOnly(cvv) != cvv {
		fields["cvv"] = "must have 3 or 4 digits"
	}

	document := digitsOnly(in.Document)
	if len(document) != 11 && len(document) != 14 {
		fields["document"] = "must be a CPF (11 digits) or CNPJ (14 digits)"
	}

	postalCode := digitsOnly(in.PostalCode)
	if len(postalCode) != 8 {
		fields["postal_code"] = "must have 8 digits"
	}

	addressNumber := strings.TrimSpace(in.AddressNumber)
	if addressNumber == "" {
		fields["address_number"] = "required"
	}

	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "required"
	}

	if len(fields) > 0 {
		return CreditCard{}, CardHolderInfo{}, &ValidationError{Fields: fields}
	}

	card := CreditCard{
		HolderName:  holderName,
		Number:      number,
		ExpiryMonth: fmt.Sprintf("%02d", month),
		ExpiryYear:  strconv.Itoa(year),
		CCV:         cvv,
	}
	holder := CardHolderInfo{
		Name:          holderName,
		Email:         email,
		Document:      document,
		PostalCode:    postalCode,
		AddressNumber: addressNumber,
		Phone:         digitsOnly(in.Phone),
	}
	return card, holder, nil
}

// expired reports whether a card valid through month/year is unusable at now.
func expired(year, month int, now time.Time) bool {
	if year != now.Year() {
		return year < now.Year()
	}
	return month < int(now.Month())
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
