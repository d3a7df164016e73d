package model

import (
	"time"
)

// DefaultMinQuantity is the min_quantity given to newly synced products.
const DefaultMinQuantity = 5

const (
	ProductTypeStandard  = "standard"
	ProductTypeAttribute = "attribute"

	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"

	ProductConditionNew = "new"
)

// Product is either a principal product or an attribute (variant) row.
//
// Principal rows carry AttributeID 0 and no ParentID. Attribute rows share
// PrestaID with their parent and point to it through ParentID (local id).
type Product struct {
	BaseModel

	SiteID int64 `gorm:"not null;uniqueIndex:idx_product_remote,priority:1;index:idx_product_reference,priority:1;index:idx_product_attribute,priority:1" json:"site_id"`

	// --- remote identity ---
	PrestaID    int64  `gorm:"not null;uniqueIndex:idx_product_remote,priority:2" json:"presta_id"`
	AttributeID int64  `gorm:"not null;default:0;uniqueIndex:idx_product_remote,priority:3;index:idx_product_attribute,priority:2" json:"attribute_id"`
	ParentID    *int64 `gorm:"index:idx_product_attribute,priority:3" json:"parent_id"`
	IsAttribute bool   `gorm:"not null;default:false" json:"is_attribute"`

	// --- catalogue ---
	// attribute names are "<parent name> <declinaisons>"
	Name      string `gorm:"size:255" json:"name"`
	Reference string `gorm:"size:128;index:idx_product_reference,priority:2;comment:SKU" json:"reference"`

	// --- stock ---
	Quantity int `gorm:"not null;default:0" json:"quantity"`
	// operator setting, kept across syncs; alerts use LowStockThreshold
	MinQuantity int `gorm:"not null;default:5" json:"min_quantity"`

	// --- classification, principal rows only ---
	ProductType string    `gorm:"size:32;default:'standard'" json:"product_type"`
	Status      string    `gorm:"size:20;default:'active'" json:"status"`
	Condition   string    `gorm:"size:20;default:'new'" json:"condition"`
	LastUpdate  time.Time `json:"last_update"`
}

func (Product) TableName() string {
	return "products"
}
