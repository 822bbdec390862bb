package commerce

import (
	"fmt"
	"strings"
)

// MaxLineQuantity caps the quantity of a single cart line
const MaxLineQuantity = 99

// CartLine is one variant in the shopper's cart
type CartLine struct {
	ProductID    string `json:"product_id"`
	VariantID    string `json:"variant_id"`
	Title        string `json:"title"`
	VariantTitle string `json:"variant_title,omitempty"`
	UnitPrice    Money  `json:"unit_price"`
	Quantity     int    `json:"quantity"`
}

// LineTotal is the unit price times quantity
func (l CartLine) LineTotal() Money {
	return l.UnitPrice.Mul(l.Quantity)
}

// Cart is held in the conversation session until checkout
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// Add puts qty of the variant in the cart, merging with an existing line for
// the same variant. Quantities are clamped to 1..MaxLineQuantity.
func (c *Cart) Add(p Product, v Variant, qty int) CartLine {
	qty = clampQuantity(qty)
	for i := range c.Lines {
		if c.Lines[i].VariantID == v.ID {
			c.Lines[i].Quantity = clampQuantity(c.Lines[i].Quantity + qty)
			return c.Lines[i]
		}
	}

	line := CartLine{
		ProductID:    p.ID,
		VariantID:    v.ID,
		Title:        p.Title,
		VariantTitle: v.Title,
		UnitPrice:    v.Price,
		Quantity:     qty,
	}
	c.Lines = append(c.Lines, line)
	return line
}

// RemoveAt removes the line at index i
func (c *Cart) RemoveAt(i int) (CartLine, error) {
	if i < 0 || i >= len(c.Lines) {
		return CartLine{}, fmt.Errorf("cart line %d out of range", i+1)
	}
	line := c.Lines[i]
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return line, nil
}

// Find returns the index of the first line whose title contains term, or -1
func (c *Cart) Find(term string) int {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return -1
	}
	for i, l := range c.Lines {
		if strings.Contains(strings.ToLower(l.Title), term) {
			return i
		}
	}
	// fall back to any word of the term
	for _, word := range strings.Fields(term) {
		if len(word) < 3 {
			continue
		}
		for i, l := range c.Lines {
			if strings.Contains(strings.ToLower(l.Title), word) {
				return i
			}
		}
	}
	return -1
}

// Subtotal sums every line
func (c *Cart) Subtotal() Money {
	var total Money
	for _, l := range c.Lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// ItemCount is the total quantity across lines
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func clampQuantity(qty int) int {
	if qty < 1 {
		return 1
	}
	if qty > MaxLineQuantity {
		return MaxLineQuantity
	}
	return qty
}
