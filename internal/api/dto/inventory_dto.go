package dto

import (
	"prestadash/internal/model"
)

// ListProductsReq query string of GET /products
type ListProductsReq struct {
	SiteID int64 `form:"site_id"`
	// "true" / "false" / ""
	Attributes string `form:"attributes" binding:"omitempty,oneof=true false"`
	LowStock   bool   `form:"low_stock"`
	Keyword    string `form:"keyword"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=500"`
}

// ProductDetailResp product with its price log and alerts
type ProductDetailResp struct {
	Product      model.Product        `json:"product"`
	Variants     []model.Product      `json:"variants,omitempty"`
	PriceHistory []model.PriceHistory `json:"price_history"`
	Alerts       []model.StockAlert   `json:"alerts"`
}

// RefreshPriceHistoryResp result of a price history reconstruction
type RefreshPriceHistoryResp struct {
	AddedCount int `json:"added_count"`
}

// ListAlertsReq query string of GET /alerts
type ListAlertsReq struct {
	SiteID    int64  `form:"site_id"`
	ProductID int64  `form:"product_id"`
	Status    string `form:"status" binding:"omitempty,oneof=active resolved"`
	AlertType string `form:"alert_type" binding:"omitempty,oneof=low_stock out_of_stock"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=500"`
}
