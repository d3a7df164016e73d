package model

import (
	"time"
)

// BaseModel holds the columns shared by site-scoped tables.
// Rows are hard-deleted; there is no soft-delete column.
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
