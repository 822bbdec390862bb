package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONBStringArray is a custom type for handling string arrays in JSONB
type JSONBStringArray []string

// Value implements the driver.Valuer interface
func (a JSONBStringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface
func (a *JSONBStringArray) Scan(value interface{}) error {
	if value == nil {
		*a = JSONBStringArray{}
		return nil
	}
	data, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, a)
}

// OrderLine is a purchased line stored inside an order row
type OrderLine struct {
	ProductID  string `json:"product_id"`
	VariantID  string `json:"variant_id"`
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// OrderLines is a JSONB list of order lines
type OrderLines []OrderLine

// Value implements the driver.Valuer interface
func (l OrderLines) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface
func (l *OrderLines) Scan(value interface{}) error {
	if value == nil {
		*l = OrderLines{}
		return nil
	}
	data, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, l)
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported JSON column type %T", value)
	}
}
