package db_models

import "github.com/google/uuid"

type Account struct {
	BaseModel
	Name         string
	Email        string `gorm:"unique"`
	PasswordHash string
	Role         string     `gorm:"size:16;default:merchant"`
	MerchantID   *uuid.UUID `gorm:"type:uuid;index"`

	Merchant *Merchant `gorm:"foreignKey:MerchantID"`
}
