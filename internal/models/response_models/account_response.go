package response_models

type AccountLoginResponse struct {
	Token      string  `json:"token"`
	Role       string  `json:"role"`
	MerchantID *string `json:"merchant_id,omitempty"`
}

type AccountRegisterResponse struct {
	AccountID  string `json:"account_id"`
	MerchantID string `json:"merchant_id"`
}
