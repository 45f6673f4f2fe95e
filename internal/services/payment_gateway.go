package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"zapmenu/internal/config"
	dbm "zapmenu/internal/models/db_models"
	"zapmenu/pkg/utils"
)

type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusConfirmed ChargeStatus = "confirmed"
)

// MapChargeStatus folds the provider's payment statuses into pending/confirmed.
func MapChargeStatus(raw string) ChargeStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH":
		return ChargeStatusConfirmed
	default:
		return ChargeStatusPending
	}
}

type CustomerProfile struct {
	Name              string
	Email             string
	Document          string
	Phone             string
	PostalCode        string
	AddressNumber     string
	ExternalReference string
}

type CreditCard struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CCV         string `json:"ccv"`
}

type CardHolderInfo struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Document      string `json:"cpfCnpj"`
	PostalCode    string `json:"postalCode"`
	AddressNumber string `json:"addressNumber"`
	Phone         string `json:"phone,omitempty"`
}

type ChargeRequest struct {
	CustomerID        string
	Method            dbm.PaymentMethod
	Amount            decimal.Decimal
	DueDate           time.Time
	Description       string
	ExternalReference string
	Card              *CreditCard
	Holder            *CardHolderInfo
	RemoteIP          string
}

type Charge struct {
	ID         string
	Status     ChargeStatus
	InvoiceURL string
}

type PixQRCode struct {
	EncodedImage   string
	Payload        string
	ExpirationDate string
}

type SubscriptionRequest struct {
	CustomerID        string
	Amount            decimal.Decimal
	NextDueDate       time.Time
	Description       string
	ExternalReference string
	Card              CreditCard
	Holder            CardHolderInfo
	RemoteIP          string
}

type GatewaySubscription struct {
	ID     string
	Status string
}

// GatewayError is a structured rejection returned by the provider. Transport
// failures are never GatewayErrors; they wrap utils.ErrGatewayUnavailable.
type GatewayError struct {
	Operation   string
	StatusCode  int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment gateway rejected %s (%d %s): %s", e.Operation, e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("payment gateway rejected %s (%d): %s", e.Operation, e.StatusCode, e.Description)
}

// Rejection is the provider message, shown to the merchant verbatim.
func (e *GatewayError) Rejection() string {
	return e.Description
}

type PaymentGateway interface {
	CreateCustomer(ctx context.Context, profile CustomerProfile) (string, error)
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	GetPixQRCode(ctx context.Context, chargeID string) (*PixQRCode, error)
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*GatewaySubscription, error)
	GetChargeStatus(ctx context.Context, chargeID string) (ChargeStatus, error)
}

type providerResponse struct {
	status int
	body   []byte
}

type asaasGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*providerResponse]
}

const breakerFailureThreshold = 5

func NewPaymentGateway(cfg config.GatewayConfig) PaymentGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		IsSuccessful: func(err error) bool {
			var gone *callerGoneError
			return err == nil || errors.As(err, &gone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}

	return &asaasGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[*providerResponse](settings),
	}
}

func (g *asaasGateway) CreateCustomer(ctx context.Context, profile CustomerProfile) (string, error) {
	payload := map[string]any{
		"name":              profile.Name,
		"email":             profile.Email,
		"cpfCnpj":           profile.Document,
		"mobilePhone":       profile.Phone,
		"postalCode":        profile.PostalCode,
		"addressNumber":     profile.AddressNumber,
		"externalReference": profile.ExternalReference,
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := g.call(ctx, "create_customer", http.MethodPost, "/customers", payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: create_customer: response missing id", utils.ErrGatewayUnavailable)
	}
	return out.ID, nil
}

func (g *asaasGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	payload := map[string]any{
		"customer":          req.CustomerID,
		"billingType":       string(req.Method),
		"value":             json.Number(req.Amount.StringFixed(2)),
		"dueDate":           utils.FormatDateBR(req.DueDate),
		"description":       req.Description,
		"externalReference": req.ExternalReference,
	}
	if req.Card != nil {
		payload["creditCard"] = req.Card
	}
	if req.Holder != nil {
		payload["creditCardHolderInfo"] = req.Holder
	}
	if req.RemoteIP != "" {
		payload["remoteIp"] = req.RemoteIP
	}

	var out struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		InvoiceURL string `json:"invoiceUrl"`
	}
	if err := g.call(ctx, "create_charge", http.MethodPost, "/payments", payload, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: create_charge: response missing id", utils.ErrGatewayUnavailable)
	}
	return &Charge{ID: out.ID, Status: MapChargeStatus(out.Status), InvoiceURL: out.InvoiceURL}, nil
}

func (g *asaasGateway) GetPixQRCode(ctx context.Context, chargeID string) (*PixQRCode, error) {
	var out struct {
		EncodedImage   string `json:"encodedImage"`
		Payload        string `json:"payload"`
		ExpirationDate string `json:"expirationDate"`
	}
	path := "/payments/" + url.PathEscape(chargeID) + "/pixQrCode"
	if err := g.call(ctx, "pix_qr_code", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &PixQRCode{EncodedImage: out.EncodedImage, Payload: out.Payload, ExpirationDate: out.ExpirationDate}, nil
}

func (g *asaasGateway) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*GatewaySubscription, error) {
	payload := map[string]any{
		"customer":             req.CustomerID,
		"billingType":          string(dbm.PaymentMethodCreditCard),
		"value":                json.Number(req.Amount.StringFixed(2)),
		"nextDueDate":          utils.FormatDateBR(req.NextDueDate),
		"cycle":                "MONTHLY",
		"description":          req.Description,
		"externalReference":    req.ExternalReference,
		"creditCard":           req.Card,
		"creditCardHolderInfo": req.Holder,
	}
	if req.RemoteIP != "" {
		payload["remoteIp"] = req.RemoteIP
	}

	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := g.call(ctx, "create_subscription", http.MethodPost, "/subscriptions", payload, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: create_subscription: response missing id", utils.ErrGatewayUnavailable)
	}
	return &GatewaySubscription{ID: out.ID, Status: out.Status}, nil
}

func (g *asaasGateway) GetChargeStatus(ctx context.Context, chargeID string) (ChargeStatus, error) {
	var out struct {
		Status string `json:"status"`
	}
	path := "/payments/" + url.PathEscape(chargeID) + "/status"
	if err := g.call(ctx, "charge_status", http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return MapChargeStatus(out.Status), nil
}

// callerGoneError marks a request abandoned by its own caller. It does not
// count against the breaker.
type callerGoneError struct {
	err error
}

func (e *callerGoneError) Error() string { return "request abandoned by caller: " + e.err.Error() }

func (e *callerGoneError) Unwrap() error { return e.err }

type providerErrorBody struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

// call runs one request through the breaker and decodes a 2xx body into out.
func (g *asaasGateway) call(ctx context.Context, op, method, path string, payload, out any) error {
	started := time.Now()
	outcome := "ok"
	defer func() {
		gatewayRequestDuration.WithLabelValues(op, outcome).Observe(time.Since(started).Seconds())
	}()

	resp, err := g.breaker.Execute(func() (*providerResponse, error) {
		resp, err := g.doJSON(ctx, method, g.baseURL+path, payload)
		if err != nil && ctx.Err() != nil {
			return nil, &callerGoneError{err: ctx.Err()}
		}
		return resp, err
	})
	var gone *callerGoneError
	if errors.As(err, &gone) {
		outcome = "cancelled"
		return fmt.Errorf("%s: %w", op, gone.err)
	}
	if err != nil {
		outcome = "unavailable"
		return fmt.Errorf("%w: %s: %v", utils.ErrGatewayUnavailable, op, err)
	}

	if resp.status < 200 || resp.status > 299 {
		outcome = "rejected"
		return parseRejection(op, resp)
	}

	if out == nil || len(resp.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		outcome = "unavailable"
		return fmt.Errorf("%w: %s: invalid response: %v", utils.ErrGatewayUnavailable, op, err)
	}
	return nil
}

func parseRejection(op string, resp *providerResponse) error {
	gerr := &GatewayError{
		Operation:   op,
		StatusCode:  resp.status,
		Description: fmt.Sprintf("payment provider returned status %d", resp.status),
	}

	var body providerErrorBody
	if err := json.Unmarshal(resp.body, &body); err != nil || len(body.Errors) == 0 {
		return gerr
	}

	descriptions := make([]string, 0, len(body.Errors))
	for _, e := range body.Errors {
		if d := strings.TrimSpace(e.Description); d != "" {
			descriptions = append(descriptions, d)
		}
	}
	gerr.Code = body.Errors[0].Code
	if len(descriptions) > 0 {
		gerr.Description = strings.Join(descriptions, "; ")
	}
	return gerr
}

func (g *asaasGateway) doJSON(ctx context.Context, method, endpoint string, payload any) (*providerResponse, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("access_token", g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "zapmenu-billing")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return &providerResponse{status: resp.StatusCode, body: raw}, nil
}

// IsGatewayRejection reports whether err is a provider rejection.
func IsGatewayRejection(err error) bool {
	var gerr *GatewayError
	return errors.As(err, &gerr)
}
