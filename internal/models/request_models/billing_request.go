package request_models

// CardPaymentRequest carries raw card fields; formatting is checked by the
// card payment service so every field error can be reported at once.
type CardPaymentRequest struct {
	HolderName    string `json:"holder_name"`
	Number        string `json:"number"`
	ExpiryMonth   string `json:"expiry_month"`
	ExpiryYear    string `json:"expiry_year"`
	CVV           string `json:"cvv"`
	Document      string `json:"document"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	PostalCode    string `json:"postal_code"`
	AddressNumber string `json:"address_number"`
	Recurrent     bool   `json:"recurrent"`
}

// GrantRequest takes one of months, lifetime or due_date. due_date accepts
// epoch seconds or milliseconds, or an ISO-8601 string.
type GrantRequest struct {
	Months   int  `json:"months" binding:"gte=0,lte=120"`
	Lifetime bool `json:"lifetime"`
	DueDate  any  `json:"due_date" swaggertype:"string"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active suspended"`
}

type MerchantProfileRequest struct {
	Name          string `json:"name" binding:"required,min=2,max=120"`
	Email         string `json:"email" binding:"omitempty,email"`
	Document      string `json:"document" binding:"omitempty,numeric"`
	Phone         string `json:"phone"`
	PostalCode    string `json:"postal_code" binding:"omitempty,len=8,numeric"`
	AddressNumber string `json:"address_number"`
}
