package models

import (
	"time"

	"github.com/Kowshalya-Eswar/agrofarm/pkg/enums"
	"github.com/google/uuid"
)

type Payment struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderReference string              `gorm:"column:order_reference;not null;index" json:"order_reference"`
	ProviderRef    *string             `gorm:"column:provider_ref;uniqueIndex" json:"provider_ref,omitempty"`
	Method         enums.PaymentMethod `gorm:"column:method;not null" json:"method"`
	Status         enums.PaymentStatus `gorm:"column:status;not null;default:'pending'" json:"status"`
	AmountCents    int64               `gorm:"column:amount_cents;not null" json:"amount_cents"`
	CapturedCents  int64               `gorm:"column:captured_cents;not null;default:0" json:"captured_cents"`
	FailureReason  *string             `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
