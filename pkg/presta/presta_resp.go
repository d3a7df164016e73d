package presta

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

var (
	flexIntType    = reflect.TypeOf(FlexInt(0))
	flexStringType = reflect.TypeOf(FlexString(""))
)

// ==================== Loose scalars ====================
// The prestasynch module serialises ids, prices and counters straight from
// PHP arrays: the same field can arrive as "12", 12, "" or null depending on
// the PrestaShop version. These types absorb all of them.

// FlexInt decodes a JSON number or numeric string. Empty and null decode to 0.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FlexInt(n)
		return nil
	}
	// "3.000000" style quantities
	fl, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(fl) || fl < math.MinInt64 || fl >= math.MaxInt64 {
		return &json.UnmarshalTypeError{Value: s, Type: flexIntType}
	}
	*f = FlexInt(int64(fl))
	return nil
}

// Int64 returns the value as int64.
func (f FlexInt) Int64() int64 { return int64(f) }

// FlexString decodes a JSON string or number. Numbers keep their literal
// text, so "19.990000" and 19.99 are never routed through a float.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	switch data[0] {
	case '{', '[':
		return &json.UnmarshalTypeError{Value: "object", Type: flexStringType}
	}
	// true/false and numbers keep their literal text
	*f = FlexString(string(data))
	return nil
}

func (f FlexString) String() string { return string(f) }

// ==================== Products ====================

// ProductRecord is one element of the products / products_with_attributes
// arrays. Attribute records carry IDProductAttribute > 0; ParentID is
// optional and defaults to ID.
type ProductRecord struct {
	ID                 FlexInt    `json:"id" validate:"gte=0"`
	Name               FlexString `json:"name"`
	Reference          FlexString `json:"reference"`
	Price              FlexString `json:"price"`
	Quantity           FlexInt    `json:"quantity"`
	IDProductAttribute FlexInt    `json:"id_product_attribute"`
	ParentID           FlexInt    `json:"parent_id"`
	Declinaisons       FlexString `json:"declinaisons"`

	// optional, not sent by every module version
	ProductType FlexString `json:"product_type"`
	Active      FlexString `json:"active"`
	Condition   FlexString `json:"condition"`
}

// ProductsResp is the products / products_with_attributes envelope. Records
// stay raw so that one malformed record does not fail the whole batch.
type ProductsResp struct {
	Products *[]json.RawMessage `json:"products"`
}

// ==================== Ping ====================

type PingResp struct {
	Status  FlexString `json:"status"`
	Version FlexString `json:"version"`
	Message FlexString `json:"message"`
}

// ==================== Stats ====================

type StatsPayload struct {
	TotalCustomers  FlexInt    `json:"total_customers"`
	TotalOrders     FlexInt    `json:"total_orders"`
	TotalRevenue    FlexString `json:"total_revenue"`
	TotalProducts   FlexInt    `json:"total_products"`
	TotalCategories FlexInt    `json:"total_categories"`
}

type StatsResp struct {
	Stats *StatsPayload `json:"stats"`
}

// ==================== Price history ====================

type PriceHistoryProduct struct {
	ID        FlexInt    `json:"id"`
	Name      FlexString `json:"name"`
	Reference FlexString `json:"reference"`
	Price     FlexString `json:"price"`
}

type SpecificPrice struct {
	ID            FlexInt    `json:"id"`
	Price         FlexString `json:"price"`
	Reduction     FlexString `json:"reduction"`
	ReductionType FlexString `json:"reduction_type"`
	From          FlexString `json:"from"`
	To            FlexString `json:"to"`
}

type OrderPrice struct {
	OrderID   FlexInt    `json:"id_order"`
	Date      FlexString `json:"date"`
	UnitPrice FlexString `json:"unit_price"`
	Quantity  FlexInt    `json:"quantity"`
}

// PriceChange is one entry of the authoritative price timeline.
type PriceChange struct {
	Date     FlexString `json:"date"`
	OldPrice FlexString `json:"old_price"`
	NewPrice FlexString `json:"new_price"`
	Type     FlexString `json:"type"`
}

type PriceTimeline struct {
	Current        json.RawMessage `json:"current"`
	SpecificPrices []SpecificPrice `json:"specific_prices"`
	OrderPrices    []OrderPrice    `json:"order_prices"`
	PriceChanges   []PriceChange   `json:"price_changes"`
}

type PriceHistoryResp struct {
	Product PriceHistoryProduct `json:"product"`
	History *PriceTimeline      `json:"history"`
}

// envelope is the shape shared by every error answer of the module.
type envelope struct {
	Success *bool      `json:"success"`
	Error   FlexString `json:"error"`
	Message FlexString `json:"message"`
}
