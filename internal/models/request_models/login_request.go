package request_models

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type SignUpRequest struct {
	DisplayName   string `json:"display_name" binding:"required,min=3,max=50"`
	StoreName     string `json:"store_name" binding:"required,min=2,max=120"`
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=6"`
	Document      string `json:"document"`
	Phone         string `json:"phone"`
	PostalCode    string `json:"postal_code"`
	AddressNumber string `json:"address_number"`
}
