package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapmenu/internal/models/db_models"
	"zapmenu/internal/models/request_models"
	"zapmenu/pkg/utils"
)

type memoryAccounts struct {
	mu        sync.Mutex
	byEmail   map[string]db_models.Account
	insertErr error
}

func (r *memoryAccounts) Insert(_ context.Context, account *db_models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	r.byEmail[account.Email] = *account
	return nil
}

func (r *memoryAccounts) FindByEmail(_ context.Context, email string) (*db_models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func signUp() request_models.SignUpRequest {
	return request_models.SignUpRequest{
		DisplayName:   "Maria Souza",
		StoreName:     "Pizzaria Bella",
		Email:         "Maria@Bella.com.br",
		Password:      "s3cret!",
		Document:      "123.456.789-09",
		Phone:         "(11) 98888-7777",
		PostalCode:    "01310-100",
		AddressNumber: "100",
	}
}

func TestRegister_CreatesTrialMerchant(t *testing.T) {
	store := newMemoryStore()
	accounts := &memoryAccounts{byEmail: map[string]db_models.Account{}}
	policy := DefaultBillingPolicy()
	policy.TrialDays = 14
	svc := NewAccountService(accounts, store, policy).(*AccountService)
	svc.now = fixedClock(testNow)

	out, err := svc.Register(context.Background(), signUp())
	require.NoError(t, err)

	merchant := store.get(uuid.MustParse(out.MerchantID))
	assert.Equal(t, "Pizzaria Bella", merchant.Name)
	assert.Equal(t, "12345678909", merchant.Document)
	assert.Equal(t, "01310100", merchant.PostalCode)
	assert.Equal(t, db_models.SubStatusTrial, merchant.Subscription.Status)
	require.NotNil(t, merchant.Subscription.NextDueDate)
	assert.Equal(t, testNow.Add(14*day), *merchant.Subscription.NextDueDate)

	account, err := accounts.FindByEmail(context.Background(), "maria@bella.com.br")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, utils.RoleMerchant, account.Role)
	assert.Equal(t, merchant.ID, *account.MerchantID)
	assert.NotEqual(t, "s3cret!", account.PasswordHash)

	_, err = svc.Register(context.Background(), signUp())
	assert.ErrorIs(t, err, utils.ErrEmailAlreadyExists)
}

func TestRegister_AccountFailureRemovesMerchant(t *testing.T) {
	store := newMemoryStore()
	accounts := &memoryAccounts{byEmail: map[string]db_models.Account{}, insertErr: errors.New("duplicate key")}
	svc := NewAccountService(accounts, store, DefaultBillingPolicy()).(*AccountService)
	svc.now = fixedClock(testNow)

	_, err := svc.Register(context.Background(), signUp())
	assert.ErrorIs(t, err, utils.ErrDatabaseError)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.merchants)
}

func TestLogin(t *testing.T) {
	utils.SetJWTSecret("test-secret")
	store := newMemoryStore()
	accounts := &memoryAccounts{byEmail: map[string]db_models.Account{}}
	svc := NewAccountService(accounts, store, DefaultBillingPolicy())

	reg, err := svc.Register(context.Background(), signUp())
	require.NoError(t, err)

	out, err := svc.Login(context.Background(), request_models.LoginRequest{Email: "MARIA@bella.com.br", Password: "s3cret!"})
	require.NoError(t, err)
	require.NotNil(t, out.MerchantID)
	assert.Equal(t, reg.MerchantID, *out.MerchantID)

	claims, err := utils.ValidateToken(out.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.AccountID, claims.AccountID)
	assert.Equal(t, reg.MerchantID, claims.MerchantID)

	_, err = svc.Login(context.Background(), request_models.LoginRequest{Email: "maria@bella.com.br", Password: "wrong-pass"})
	assert.ErrorIs(t, err, utils.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), request_models.LoginRequest{Email: "nobody@bella.com.br", Password: "whatever"})
	assert.ErrorIs(t, err, utils.ErrAccountNotFound)
}
