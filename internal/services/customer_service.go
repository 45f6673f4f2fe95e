package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"zapmenu/internal/repositories"
)

type CustomerServiceInterface interface {
	// GetOrCreateCustomer returns the merchant's gateway customer id, creating
	// it on first use. At most one customer is created per merchant.
	GetOrCreateCustomer(ctx context.Context, merchantID uuid.UUID) (string, error)
}

type CustomerService struct {
	store   repositories.BillingStore
	gateway PaymentGateway
	group   singleflight.Group
}

func NewCustomerService(store repositories.BillingStore, gateway PaymentGateway) CustomerServiceInterface {
	return &CustomerService{store: store, gateway: gateway}
}

func (s *CustomerService) GetOrCreateCustomer(ctx context.Context, merchantID uuid.UUID) (string, error) {
	v, err, _ := s.group.Do(merchantID.String(), func() (interface{}, error) {
		return s.getOrCreate(ctx, merchantID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *CustomerService) getOrCreate(ctx context.Context, merchantID uuid.UUID) (string, error) {
	merchant, err := loadMerchant(ctx, s.store, merchantID)
	if err != nil {
		return "", err
	}
	if id := merchant.Subscription.ExternalCustomerID; id != "" {
		return id, nil
	}

	created, err := s.gateway.CreateCustomer(ctx, CustomerProfile{
		Name:              merchant.Name,
		Email:             merchant.Email,
		Document:          merchant.Document,
		Phone:             merchant.Phone,
		PostalCode:        merchant.PostalCode,
		AddressNumber:     merchant.AddressNumber,
		ExternalReference: merchant.ID.String(),
	})
	if err != nil {
		return "", err
	}

	stored, err := s.store.SetExternalCustomerID(ctx, merchantID, created)
	if err != nil {
		return "", fmt.Errorf("persist gateway customer: %w", err)
	}
	if stored != created {
		// Another instance won the race; the stored id is authoritative.
		log.Warn().
			Str("merchant_id", merchantID.String()).
			Str("created", created).
			Str("stored", stored).
			Msg("gateway customer created concurrently, keeping stored id")
	}
	return stored, nil
}
