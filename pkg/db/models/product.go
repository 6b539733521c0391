package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the authoritative listing. Stock here backs committed orders;
// it is mutated only by order creation and compensation paths, never by
// cart activity.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Description *string   `gorm:"column:description" json:"description,omitempty"`
	PriceCents  int64     `gorm:"column:price_cents;not null" json:"price_cents"`
	Stock       int       `gorm:"column:stock;not null;default:0" json:"stock"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
