package model

import (
	"time"

	"gorm.io/datatypes"
)

// ModuleLog types
const (
	LogTypeSync         = "sync"
	LogTypeWebhook      = "webhook"
	LogTypeConnection   = "connection"
	LogTypeStats        = "stats"
	LogTypePriceHistory = "price_history"
	LogTypeReset        = "reset"
)

// ModuleLog statuses
const (
	LogStatusSuccess = "success"
	LogStatusError   = "error"
	LogStatusWarning = "warning"
	LogStatusInfo    = "info"
)

// ModuleLog is the operator-visible audit trail of sync/API activity.
// Rows are only ever inserted; ClearLogs and ResetSiteData delete them per site.
type ModuleLog struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID int64 `gorm:"not null;index;comment:site id" json:"site_id"`

	// classification
	Type   string `gorm:"size:32;not null;comment:sync/webhook/connection/stats/price_history/reset" json:"type"`
	Status string `gorm:"size:20;not null;comment:success/error/warning/info" json:"status"`

	// payload
	Message string `gorm:"type:text" json:"message"`
	// free-form JSON, e.g. batch counters or the failing remote status
	Details datatypes.JSON `json:"details,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (ModuleLog) TableName() string {
	return "module_logs"
}
