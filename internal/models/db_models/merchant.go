package db_models

type Merchant struct {
	BaseModel
	Name          string `gorm:"size:120;not null"`
	Email         string `gorm:"size:160;index"`
	Document      string `gorm:"size:14"` // CPF or CNPJ, digits only
	Phone         string `gorm:"size:20"`
	PostalCode    string `gorm:"size:8"`
	AddressNumber string `gorm:"size:16"`

	Subscription SubscriptionRecord `gorm:"embedded;embeddedPrefix:billing_"`
}
