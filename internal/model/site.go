package model

import (
	"time"
)

// Site connection status
const (
	SiteStatusConnected    = "connected"
	SiteStatusDisconnected = "disconnected"
	SiteStatusError        = "error"
)

// Site sync state token, swapped with compare-and-swap semantics
const (
	SyncStateIdle    = "idle"
	SyncStateSyncing = "syncing"
)

// Site is one connected PrestaShop store.
type Site struct {
	BaseModel

	OwnerID int64  `gorm:"index;not null" json:"owner_id"`
	Name    string `gorm:"size:255" json:"name"`
	URL     string `gorm:"size:512;not null" json:"url"`

	// API key of the prestasynch module. Indexed for webhook resolution,
	// not unique: two owners may paste the same key.
	APIKey string `gorm:"size:255;index;not null" json:"-"`

	// --- HTTP Basic (staging stores behind .htpasswd) ---
	HTTPAuthEnabled  bool   `gorm:"default:false" json:"http_auth_enabled"`
	HTTPAuthUser     string `gorm:"size:255" json:"http_auth_user,omitempty"`
	HTTPAuthPassword string `gorm:"size:255" json:"-"`

	PrestaVersion string `gorm:"size:32" json:"presta_version"`

	Status   string     `gorm:"size:20;index;default:'disconnected'" json:"status"`
	LastSync *time.Time `json:"last_sync"`

	SyncState     string     `gorm:"size:20;default:'idle'" json:"sync_state"`
	SyncStartedAt *time.Time `json:"sync_started_at,omitempty"`
}

func (Site) TableName() string {
	return "sites"
}

// HasBasicAuth reports whether requests must carry an Authorization header.
func (s *Site) HasBasicAuth() bool {
	return s.HTTPAuthEnabled && s.HTTPAuthUser != "" && s.HTTPAuthPassword != ""
}
