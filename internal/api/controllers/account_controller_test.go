package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapmenu/internal/models/request_models"
	"zapmenu/internal/models/response_models"
	"zapmenu/pkg/middleware"
	"zapmenu/pkg/utils"
)

type stubAccounts struct {
	registered []request_models.SignUpRequest
}

func (s *stubAccounts) Login(_ context.Context, req request_models.LoginRequest) (*response_models.AccountLoginResponse, error) {
	if req.Password != "secret123" {
		return nil, utils.ErrInvalidCredentials
	}
	return &response_models.AccountLoginResponse{Token: "tok", Role: utils.RoleMerchant}, nil
}

func (s *stubAccounts) Register(_ context.Context, req request_models.SignUpRequest) (*response_models.AccountRegisterResponse, error) {
	for _, r := range s.registered {
		if r.Email == req.Email {
			return nil, utils.ErrEmailAlreadyExists
		}
	}
	s.registered = append(s.registered, req)
	return &response_models.AccountRegisterResponse{AccountID: uuid.NewString(), MerchantID: uuid.NewString()}, nil
}

type stubMerchants struct {
	updated map[uuid.UUID]string
}

func (s *stubMerchants) UpdateProfile(_ context.Context, id uuid.UUID, req request_models.MerchantProfileRequest) error {
	s.updated[id] = req.Name
	return nil
}

func postJSON(r http.Handler, path string, body interface{}, auth string) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAccountController_RegisterAndLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctrl := NewAccountController(&stubAccounts{})
	r := gin.New()
	r.POST("/accounts/register", ctrl.Register)
	r.POST("/accounts/login", ctrl.Login)

	signUp := request_models.SignUpRequest{
		DisplayName: "Ana Souza",
		StoreName:   "Pizzaria da Ana",
		Email:       "ana@example.com",
		Password:    "secret123",
	}
	w := postJSON(r, "/accounts/register", signUp, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = postJSON(r, "/accounts/register", signUp, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = postJSON(r, "/accounts/register", gin.H{"email": "not-an-email"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/accounts/login", request_models.LoginRequest{Email: "ana@example.com", Password: "secret123"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "tok", resp.Data.(map[string]interface{})["token"])

	w = postJSON(r, "/accounts/login", request_models.LoginRequest{Email: "ana@example.com", Password: "wrong-one"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMerchantController_UpdateProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("controller-secret")
	merchants := &stubMerchants{updated: map[uuid.UUID]string{}}
	ctrl := NewMerchantController(merchants)

	r := gin.New()
	r.POST("/merchant/profile", middleware.JWTAuthMiddleware(), middleware.RequireMerchant(), ctrl.UpdateProfile)

	merchantID := uuid.New()
	token, err := utils.CreateToken(uuid.New(), &merchantID, utils.RoleMerchant)
	require.NoError(t, err)

	w := postJSON(r, "/merchant/profile", request_models.MerchantProfileRequest{Name: "Burger Place"}, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Burger Place", merchants.updated[merchantID])

	w = postJSON(r, "/merchant/profile", request_models.MerchantProfileRequest{Name: "B", PostalCode: "123"}, "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
