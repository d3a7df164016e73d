package model

import (
	"time"
)

// ==================== Alert constants ====================

const (
	AlertTypeLowStock   = "low_stock"
	AlertTypeOutOfStock = "out_of_stock"

	AlertStatusActive   = "active"
	AlertStatusResolved = "resolved"
)

// LowStockThreshold is the fixed low-water mark used when creating alerts.
// It is intentionally not Product.MinQuantity.
const LowStockThreshold = 5

// StockAlert is created on a quantity transition into the low or zero band.
// The sync engine only creates alerts; resolution is a manual action.
type StockAlert struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64 `gorm:"not null;index;comment:local product id" json:"product_id"`

	AlertType string `gorm:"size:20;not null;comment:low_stock/out_of_stock" json:"alert_type"`

	// lifecycle: active until an operator resolves it
	Status     string     `gorm:"size:20;not null;default:'active';index;comment:active/resolved" json:"status"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (StockAlert) TableName() string {
	return "stock_alerts"
}
