package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"prestadash/internal/model"
	"prestadash/pkg/presta"
)

var recordValidator = validator.New()

// Record is one validated remote product record: either a *PrincipalRecord
// or an *AttributeRecord.
type Record interface {
	RemoteID() int64
	isRecord()
}

// recordFields is shared by both record kinds.
type recordFields struct {
	ID        int64
	Name      string
	Reference string
	// canonical decimal text; empty when the store sent no price
	Price    string
	Quantity int
}

func (f recordFields) RemoteID() int64 { return f.ID }

func (f recordFields) HasPrice() bool { return f.Price != "" }

// PrincipalRecord is a top level product.
type PrincipalRecord struct {
	recordFields
	ProductType string
	Status      string
	Condition   string
}

func (*PrincipalRecord) isRecord() {}

// AttributeRecord is a variant of the principal product ParentID.
type AttributeRecord struct {
	recordFields
	AttributeID  int64
	ParentID     int64
	Declinaisons string
}

func (*AttributeRecord) isRecord() {}

// ParseRecord validates one raw record. Any record with
// id_product_attribute > 0 is an attribute; its parent id falls back to id,
// and an attribute with neither is left for the engine to skip.
func ParseRecord(raw json.RawMessage) (Record, error) {
	var in presta.ProductRecord
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := recordValidator.Struct(&in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("%w: field %s failed %q", ErrInvalidRecord, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	price, err := CanonicalDecimal(in.Price.String())
	if err != nil {
		return nil, fmt.Errorf("%w: price: %v", ErrInvalidRecord, err)
	}
	if price != "" && strings.HasPrefix(price, "-") {
		return nil, fmt.Errorf("%w: negative price %s", ErrInvalidRecord, price)
	}

	fields := recordFields{
		ID:        in.ID.Int64(),
		Name:      strings.TrimSpace(in.Name.String()),
		Reference: strings.TrimSpace(in.Reference.String()),
		Price:     price,
		Quantity:  int(in.Quantity.Int64()),
	}

	if in.IDProductAttribute.Int64() > 0 {
		// the module sends id == parent_id; either one stands in for the other
		parentID := in.ParentID.Int64()
		if parentID <= 0 {
			parentID = fields.ID
		}
		if fields.ID <= 0 {
			fields.ID = parentID
		}
		return &AttributeRecord{
			recordFields: fields,
			AttributeID:  in.IDProductAttribute.Int64(),
			ParentID:     parentID,
			Declinaisons: strings.TrimSpace(in.Declinaisons.String()),
		}, nil
	}

	if fields.ID <= 0 {
		return nil, fmt.Errorf("%w: field id failed \"gt\"", ErrInvalidRecord)
	}

	return &PrincipalRecord{
		recordFields: fields,
		ProductType:  orDefault(strings.TrimSpace(in.ProductType.String()), model.ProductTypeStandard),
		Status:       activeStatus(in.Active.String()),
		Condition:    orDefault(strings.TrimSpace(in.Condition.String()), model.ProductConditionNew),
	}, nil
}

// ParseRecords validates a whole batch and returns every failure.
func ParseRecords(raws []json.RawMessage) ([]Record, []RecordResult) {
	records := make([]Record, 0, len(raws))
	var failures []RecordResult
	for i, raw := range raws {
		rec, err := ParseRecord(raw)
		if err != nil {
			failures = append(failures, RecordResult{Index: i, Outcome: OutcomeFailed, Reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}
	return records, failures
}

// CanonicalDecimal normalises a decimal string ("19.990000" -> "19.99").
// Empty input yields an empty result.
func CanonicalDecimal(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

func activeStatus(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "inactive":
		return model.ProductStatusInactive
	}
	return model.ProductStatusActive
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
