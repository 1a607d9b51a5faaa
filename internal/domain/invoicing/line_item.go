package invoicing

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is a single billed entry. It is immutable; the amount is never
// negative.
type LineItem struct {
	description string
	amount      decimal.Decimal
}

// NewLineItem creates a line item from a decimal amount
func NewLineItem(description string, amount decimal.Decimal) (LineItem, error) {
	if amount.IsNegative() {
		return LineItem{}, domainErrorf(CodeInvalidLineItem, "line item %q has a negative amount %s", description, amount.String())
	}
	return LineItem{
		description: strings.TrimSpace(description),
		amount:      amount,
	}, nil
}

// NewLineItemFromFloat creates a line item from a float64 amount, as typed
// at an interactive prompt. NaN and infinities are rejected.
func NewLineItemFromFloat(description string, amount float64) (LineItem, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return LineItem{}, domainErrorf(CodeInvalidLineItem, "line item %q has a non-finite amount", description)
	}
	return NewLineItem(description, decimal.NewFromFloat(amount))
}

// NewLineItemFromString parses amount as a decimal string
func NewLineItemFromString(description, amount string) (LineItem, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return LineItem{}, domainErrorf(CodeInvalidLineItem, "line item %q has an invalid amount %q", description, amount)
	}
	return NewLineItem(description, d)
}

// Description returns the item description
func (li LineItem) Description() string {
	return li.description
}

// Amount returns the item amount
func (li LineItem) Amount() decimal.Decimal {
	return li.amount
}

type lineItemJSON struct {
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
}

// MarshalJSON encodes the item as {"description": ..., "amount": 150.00}
func (li LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(lineItemJSON{
		Description: li.description,
		Amount:      json.Number(li.amount.StringFixed(2)),
	})
}

// SumAmounts folds the item amounts. The sum of no items is zero.
func SumAmounts(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.amount)
	}
	return total
}
