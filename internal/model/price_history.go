package model

import (
	"time"
)

// PriceHistory type tags
const (
	PriceTypeSync      = "sync"
	PriceTypeChange    = "change"
	PriceTypeManual    = "manual"
	PriceTypeOrder     = "order"
	PriceTypeAttribute = "attribute"
)

// PriceHistory is one observed price point. Append-only.
// Price is canonical exact-decimal text, never a float.
type PriceHistory struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64 `gorm:"not null;index:idx_price_product_date,priority:1;comment:local product id" json:"product_id"`

	Price string    `gorm:"size:32;not null;comment:decimal text" json:"price"`
	Date  time.Time `gorm:"not null;index:idx_price_product_date,priority:2" json:"date"`
	// one of the PriceType* tags
	Type string `gorm:"size:20;not null;default:'sync'" json:"type"`
}

func (PriceHistory) TableName() string {
	return "price_histories"
}

// IsPriceType reports whether t is one of the known type tags.
func IsPriceType(t string) bool {
	switch t {
	case PriceTypeSync, PriceTypeChange, PriceTypeManual, PriceTypeOrder, PriceTypeAttribute:
		return true
	}
	return false
}
