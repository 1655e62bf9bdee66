package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is a sellable item from the warehouse catalogue
type Product struct {
	ID       ID              `json:"product_id"`
	Name     string          `json:"name"`
	SKU      string          `json:"sku,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Category ID              `json:"category,omitempty"`
}

// Label is the display name used in messages, "Name (id)" when both differ
func (p Product) Label() string {
	if p.Name == "" || p.Name == p.ID.String() {
		return p.ID.String()
	}
	return fmt.Sprintf("%s (%s)", p.Name, p.ID)
}
