package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/wholesale_backend/utils"
	"github.com/shopspring/decimal"
)

// Supplier is owned by supplier administration; the engine only reads its minimum order value.
type Supplier struct {
	ID                int             `gorm:"primary_key" json:"id"`
	Name              string          `gorm:"size:100;not null" json:"name"`
	Email             string          `gorm:"size:100" json:"email"`
	Phone             string          `gorm:"size:20" json:"phone"`
	MinimumOrderValue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"minimum_order_value"`
	IsActive          *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name              string          `json:"name" validate:"required,max=100"`
	Email             string          `json:"email" validate:"omitempty,email"`
	Phone             string          `json:"phone" validate:"max=20"`
	PhoneRegion       string          `json:"phone_region" validate:"omitempty,len=2"`
	MinimumOrderValue decimal.Decimal `json:"minimum_order_value"`
}

const defaultPhoneRegion = "MM"

// CreateSupplier seeds a supplier row. Used by tooling and tests; production suppliers are managed elsewhere.
func CreateSupplier(ctx context.Context, store Store, input *NewSupplier) (*Supplier, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.MinimumOrderValue.IsNegative() {
		return nil, errors.New("minimum order value must not be negative")
	}
	phone := strings.TrimSpace(input.Phone)
	if phone != "" {
		region := input.PhoneRegion
		if region == "" {
			region = defaultPhoneRegion
		}
		normalized, err := utils.NormalizePhoneNumber(phone, strings.ToUpper(region))
		if err != nil {
			return nil, fmt.Errorf("invalid supplier phone: %w", err)
		}
		phone = normalized
	}
	supplier := Supplier{
		Name:              input.Name,
		Email:             input.Email,
		Phone:             phone,
		MinimumOrderValue: input.MinimumOrderValue,
		IsActive:          utils.NewTrue(),
	}
	if err := store.Suppliers().Create(ctx, &supplier); err != nil {
		return nil, err
	}
	return &supplier, nil
}
