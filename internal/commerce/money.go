package commerce

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount in the currency's minor unit
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
	"ISK": true,
}

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "CA$",
	"AUD": "A$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

func decimals(currency string) int {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// ParseMoney parses a decimal string such as "19.9" into minor units.
// Digits beyond the currency's precision are truncated.
func ParseMoney(amount, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	s := strings.TrimSpace(amount)
	if s == "" {
		return Money{Currency: currency}, nil
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	places := decimals(currency)
	if len(frac) > places {
		frac = frac[:places]
	}
	for len(frac) < places {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if neg {
		units = -units
	}
	return Money{Amount: units, Currency: currency}, nil
}

// Add returns m + o. The currency of m wins when m has one.
func (m Money) Add(o Money) Money {
	currency := m.Currency
	if currency == "" {
		currency = o.Currency
	}
	return Money{Amount: m.Amount + o.Amount, Currency: currency}
}

// Mul returns m multiplied by a quantity
func (m Money) Mul(qty int) Money {
	return Money{Amount: m.Amount * int64(qty), Currency: m.Currency}
}

// Decimal renders the amount without currency, e.g. "19.90"
func (m Money) Decimal() string {
	places := decimals(m.Currency)
	amount := m.Amount
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if places == 0 {
		return fmt.Sprintf("%s%d", sign, amount)
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

// String renders the amount for shoppers, e.g. "$19.90" or "19.90 CHF"
func (m Money) String() string {
	if sym, ok := currencySymbols[m.Currency]; ok {
		return sym + m.Decimal()
	}
	if m.Currency == "" {
		return m.Decimal()
	}
	return m.Decimal() + " " + m.Currency
}
