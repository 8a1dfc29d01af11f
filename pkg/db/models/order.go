package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hpratama/resellhub-backend/pkg/enums"
)

// Order is a reseller purchase against warehouse stock. Lines are immutable
// once the order exists; only Status and Notes change afterwards.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ResellerID  uuid.UUID         `gorm:"column:reseller_id;type:uuid;not null"`
	Status      enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	TotalAmount decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	OrderDate   time.Time         `gorm:"column:order_date;not null"`
	Notes       *string           `gorm:"column:notes"`
	Lines       []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
