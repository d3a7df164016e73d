package model

import (
	"time"
)

// SiteStats holds one aggregate row per site, overwritten by every stats
// fetch and zeroed by a site reset.
type SiteStats struct {
	BaseModel

	// owner
	SiteID int64 `gorm:"uniqueIndex;not null;comment:site id" json:"site_id"`

	// counters reported by the store
	TotalCustomers  int64 `gorm:"not null;default:0;comment:customers" json:"total_customers"`
	TotalOrders     int64 `gorm:"not null;default:0;comment:orders" json:"total_orders"`
	TotalProducts   int64 `gorm:"not null;default:0;comment:products" json:"total_products"`
	TotalCategories int64 `gorm:"not null;default:0;comment:categories" json:"total_categories"`

	// exact decimal text, same rules as PriceHistory.Price
	TotalRevenue string `gorm:"size:32;not null;default:'0';comment:revenue" json:"total_revenue"`

	LastUpdate time.Time `json:"last_update"`
}

func (SiteStats) TableName() string {
	return "site_stats"
}
