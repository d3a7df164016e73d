package dto

import (
	"encoding/json"
	"time"
)

// CreateSiteReq registers a store
type CreateSiteReq struct {
	OwnerID int64  `json:"owner_id" binding:"required,gt=0"`
	Name    string `json:"name" binding:"omitempty,max=255"`
	URL     string `json:"url" binding:"required,url,max=512"`
	APIKey  string `json:"api_key" binding:"required,max=255"`

	// HTTP Basic in front of staging stores
	HTTPAuthEnabled  bool   `json:"http_auth_enabled"`
	HTTPAuthUser     string `json:"http_auth_user" binding:"required_if=HTTPAuthEnabled true,max=255"`
	HTTPAuthPassword string `json:"http_auth_password" binding:"required_if=HTTPAuthEnabled true,max=255"`
}

// UpdateSiteReq nil fields are left untouched
type UpdateSiteReq struct {
	Name             *string `json:"name" binding:"omitempty,max=255"`
	URL              *string `json:"url" binding:"omitempty,url,max=512"`
	APIKey           *string `json:"api_key" binding:"omitempty,min=1,max=255"`
	HTTPAuthEnabled  *bool   `json:"http_auth_enabled"`
	HTTPAuthUser     *string `json:"http_auth_user" binding:"omitempty,max=255"`
	HTTPAuthPassword *string `json:"http_auth_password" binding:"omitempty,max=255"`
}

// ListSitesReq query string of GET /sites
type ListSitesReq struct {
	OwnerID  int64  `form:"owner_id"`
	Status   string `form:"status" binding:"omitempty,oneof=connected disconnected error"`
	Keyword  string `form:"keyword"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// SiteResp never carries credentials
type SiteResp struct {
	ID              int64      `json:"id"`
	OwnerID         int64      `json:"owner_id"`
	Name            string     `json:"name"`
	URL             string     `json:"url"`
	HTTPAuthEnabled bool       `json:"http_auth_enabled"`
	HTTPAuthUser    string     `json:"http_auth_user,omitempty"`
	PrestaVersion   string     `json:"presta_version"`
	Status          string     `json:"status"`
	LastSync        *time.Time `json:"last_sync"`
	SyncState       string     `json:"sync_state"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ConnectionResp result of POST /sites/:id/test
type ConnectionResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SyncResp result of a pull sync or a webhook push
type SyncResp struct {
	RunID   string             `json:"run_id"`
	Count   int                `json:"count"`
	Created int                `json:"created"`
	Updated int                `json:"updated"`
	Skipped int                `json:"skipped"`
	Failed  int                `json:"failed"`
	Alerts  int                `json:"alerts"`
	Results []RecordResultResp `json:"results"`
}

type RecordResultResp struct {
	Index       int    `json:"index"`
	RemoteID    int64  `json:"remote_id,omitempty"`
	AttributeID int64  `json:"attribute_id,omitempty"`
	Outcome     string `json:"outcome"`
	Action      string `json:"action,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// WebhookProductsReq body of POST /api/webhook/products
type WebhookProductsReq struct {
	Products []json.RawMessage `json:"products" binding:"required,min=1"`
}

// ListLogsReq query string of GET /sites/:id/logs
type ListLogsReq struct {
	Type     string `form:"type"`
	Status   string `form:"status" binding:"omitempty,oneof=success error warning info"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=500"`
}

// OrphanSweepResp result of the orphan sweep
type OrphanSweepResp struct {
	PriceHistory int64 `json:"price_history"`
	Alerts       int64 `json:"alerts"`
}

// PageResp generic paged list
type PageResp struct {
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Items interface{} `json:"items"`
}
