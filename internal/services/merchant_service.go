package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"zapmenu/internal/models/request_models"
	"zapmenu/internal/repositories"
	"zapmenu/pkg/utils"
)

type MerchantServiceInterface interface {
	// UpdateProfile is a gated mutation; callers run the access gate first.
	UpdateProfile(ctx context.Context, merchantID uuid.UUID, request request_models.MerchantProfileRequest) error
}

type MerchantService struct {
	store repositories.BillingStore
}

func NewMerchantService(store repositories.BillingStore) MerchantServiceInterface {
	return &MerchantService{store: store}
}

func (m *MerchantService) UpdateProfile(ctx context.Context, merchantID uuid.UUID, request request_models.MerchantProfileRequest) error {
	err := m.store.UpdateProfile(ctx, merchantID, repositories.MerchantProfile{
		Name:          strings.TrimSpace(request.Name),
		Email:         strings.ToLower(strings.TrimSpace(request.Email)),
		Document:      digitsOnly(request.Document),
		Phone:         digitsOnly(request.Phone),
		PostalCode:    digitsOnly(request.PostalCode),
		AddressNumber: strings.TrimSpace(request.AddressNumber),
	})
	if err != nil {
		if errors.Is(err, utils.ErrMerchantNotFound) {
			return err
		}
		return errors.Join(utils.ErrDatabaseError, err)
	}
	return nil
}
