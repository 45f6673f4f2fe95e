package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"zapmenu/internal/models/db_models"
	"zapmenu/internal/models/request_models"
	"zapmenu/internal/models/response_models"
	"zapmenu/internal/repositories"
	"zapmenu/pkg/utils"
)

type AccountServiceInterface interface {
	Login(ctx context.Context, request request_models.LoginRequest) (*response_models.AccountLoginResponse, error)
	// Register creates the merchant (in trial) and its owner account.
	Register(ctx context.Context, request request_models.SignUpRequest) (*response_models.AccountRegisterResponse, error)
}

type AccountService struct {
	accountRepo repositories.AccountRepository
	store       repositories.BillingStore
	policy      BillingPolicy
	now         func() time.Time
}

func NewAccountService(accountRepo repositories.AccountRepository, store repositories.BillingStore, policy BillingPolicy) AccountServiceInterface {
	return &AccountService{
		accountRepo: accountRepo,
		store:       store,
		policy:      policy,
		now:         time.Now,
	}
}

func (a *AccountService) Login(ctx context.Context, request request_models.LoginRequest) (*response_models.AccountLoginResponse, error) {
	startTime := time.Now()

	account, err := a.accountRepo.FindByEmail(ctx, strings.ToLower(request.Email))
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if account == nil {
		return nil, utils.ErrAccountNotFound
	}

	if err := utils.ComparePasswords(account.PasswordHash, request.Password); err != nil {
		return nil, utils.ErrInvalidCredentials
	}

	token, err := utils.CreateToken(account.ID, account.MerchantID, account.Role)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("account_id", account.ID.String()).Dur("took", time.Since(startTime)).Msg("login")

	out := &response_models.AccountLoginResponse{Token: token, Role: account.Role}
	if account.MerchantID != nil {
		id := account.MerchantID.String()
		out.MerchantID = &id
	}
	return out, nil
}

func (a *AccountService) Register(ctx context.Context, request request_models.SignUpRequest) (*response_models.AccountRegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(request.Email))

	existingAccount, err := a.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if existingAccount != nil {
		return nil, utils.ErrEmailAlreadyExists
	}

	hashedPassword, err := utils.HashPassword(request.Password)
	if err != nil {
		return nil, err
	}

	merchant := &db_models.Merchant{
		Name:          request.StoreName,
		Email:         email,
		Document:      digitsOnly(request.Document),
		Phone:         digitsOnly(request.Phone),
		PostalCode:    digitsOnly(request.PostalCode),
		AddressNumber: strings.TrimSpace(request.AddressNumber),
		Subscription: db_models.SubscriptionRecord{
			Status:      db_models.SubStatusTrial,
			NextDueDate: a.policy.TrialDueDate(a.now()),
		},
	}
	if err := a.store.CreateMerchant(ctx, merchant); err != nil {
		return nil, utils.ErrDatabaseError
	}

	account := &db_models.Account{
		Name:         request.DisplayName,
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         utils.RoleMerchant,
		MerchantID:   &merchant.ID,
	}
	if err := a.accountRepo.Insert(ctx, account); err != nil {
		// undo the sign-up so no merchant is left without an owner
		if delErr := a.store.DeleteMerchant(context.WithoutCancel(ctx), merchant.ID); delErr != nil {
			log.Error().Err(delErr).Str("merchant_id", merchant.ID.String()).Msg("orphan merchant left after failed sign-up")
		}
		log.Warn().Err(err).Str("email", email).Msg("account insert failed, sign-up rolled back")
		return nil, utils.ErrDatabaseError
	}

	return &response_models.AccountRegisterResponse{
		AccountID:  account.ID.String(),
		MerchantID: merchant.ID.String(),
	}, nil
}
