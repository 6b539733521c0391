package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem snapshots product name and price at checkout time so later
// product edits never rewrite order history.
type OrderLineItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderReference string    `gorm:"column:order_reference;not null;index" json:"order_reference"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Name           string    `gorm:"column:name;not null" json:"name"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	Qty            int       `gorm:"column:qty;not null" json:"qty"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (OrderLineItem) TableName() string { return "order_line_items" }
