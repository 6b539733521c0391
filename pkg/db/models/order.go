package models

import (
	"time"

	"github.com/Kowshalya-Eswar/agrofarm/pkg/enums"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/types"
	"github.com/google/uuid"
)

// Order is keyed by the provider-assigned payment reference, since the
// provider requires a client-visible order identifier.
type Order struct {
	Reference       string            `gorm:"column:reference;primaryKey" json:"reference"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:'pending'" json:"status"`
	TotalCents      int64             `gorm:"column:total_cents;not null" json:"total_cents"`
	ShippingAddress types.Address     `gorm:"column:shipping_address;type:jsonb;serializer:json" json:"shipping_address"`
	Items           []OrderLineItem   `gorm:"foreignKey:OrderReference;constraint:OnDelete:CASCADE" json:"items"`
	Payments        []Payment         `gorm:"foreignKey:OrderReference;constraint:OnDelete:CASCADE" json:"payments,omitempty"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
