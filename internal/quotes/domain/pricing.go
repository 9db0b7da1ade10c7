// Package domain holds the quote rules that do not touch storage: pricing and
// the status graph.
package domain

import (
	"fmt"
	"math"

	"quote_pipeline_backend/platform/apperr"
)

const pricingOp = "pricing"

// DefaultTaxRate is the VAT percentage applied when a quote does not set one.
const DefaultTaxRate = 21.0

// MaxCents bounds every line total and the subtotal. Up to 2^53 a float64
// holds each cent exactly, so the products below never lose a cent or wrap.
const MaxCents int64 = 1 << 53

// Stored precision of the NUMERIC columns: quantity (12,3) and rates (5,2).
const (
	quantityScale = 1000
	rateScale     = 100
)

// Line is one priced row. Quantity may be fractional (hours, m2).
type Line struct {
	Description    string
	Quantity       float64
	UnitPriceCents int64
}

// Rates are percentages in [0, 100].
type Rates struct {
	TaxRate      float64
	DiscountRate float64
}

// DefaultRates returns 21% tax and no discount.
func DefaultRates() Rates {
	return Rates{TaxRate: DefaultTaxRate}
}

// Amounts are the computed money fields of a quote, in cents.
type Amounts struct {
	SubtotalCents       int64
	TaxAmountCents      int64
	DiscountAmountCents int64
	TotalCents          int64
}

// Consistent reports whether total == subtotal + tax - discount.
func (a Amounts) Consistent() bool {
	return a.TotalCents == a.SubtotalCents+a.TaxAmountCents-a.DiscountAmountCents
}

// RoundQuantity rounds q to the three decimals a stored quantity keeps.
func RoundQuantity(q float64) float64 {
	return math.Round(q*quantityScale) / quantityScale
}

// RoundRate rounds a percentage to the two decimals a stored rate keeps.
func RoundRate(r float64) float64 {
	return math.Round(r*rateScale) / rateScale
}

// Normalized returns the rates at stored precision.
func (r Rates) Normalized() Rates {
	return Rates{TaxRate: RoundRate(r.TaxRate), DiscountRate: RoundRate(r.DiscountRate)}
}

// LineTotalCents is quantity x unit price rounded to the nearest cent, with
// the quantity taken at stored precision. It is derived on demand and never
// stored as a source of truth. Lines above MaxCents are rejected by Price.
func LineTotalCents(l Line) int64 {
	return roundCents(RoundQuantity(l.Quantity) * float64(l.UnitPriceCents))
}

// Price computes the amounts for lines. Each line is rounded before summing so
// long quotes do not accumulate rounding drift. An empty list is only allowed
// while the quote is still a draft.
func Price(lines []Line, rates Rates, status Status) (Amounts, error) {
	if len(lines) == 0 && status != StatusDraft {
		return Amounts{}, invalidPricing("a quote needs at least one line item once it leaves draft", nil)
	}
	if err := rates.validate(); err != nil {
		return Amounts{}, err
	}
	rates = rates.Normalized()

	var subtotal int64
	for i, l := range lines {
		if l.Quantity < 0 || math.IsNaN(l.Quantity) || math.IsInf(l.Quantity, 0) {
			return Amounts{}, invalidPricing("quantity must be a non-negative number", map[string]int{"line": i})
		}
		if l.UnitPriceCents < 0 {
			return Amounts{}, invalidPricing("unit price must not be negative", map[string]int{"line": i})
		}
		if RoundQuantity(l.Quantity)*float64(l.UnitPriceCents) > float64(MaxCents) {
			return Amounts{}, invalidPricing("line total is too large", map[string]int{"line": i})
		}
		line := LineTotalCents(l)
		if subtotal > MaxCents-line {
			return Amounts{}, invalidPricing("subtotal is too large", nil)
		}
		subtotal += line
	}

	a := Amounts{
		SubtotalCents:       subtotal,
		TaxAmountCents:      roundCents(float64(subtotal) * rates.TaxRate / 100),
		DiscountAmountCents: roundCents(float64(subtotal) * rates.DiscountRate / 100),
	}
	a.TotalCents = a.SubtotalCents + a.TaxAmountCents - a.DiscountAmountCents
	if a.TotalCents < 0 {
		return Amounts{}, invalidPricing("total must not be negative", nil)
	}
	return a, nil
}

func (r Rates) validate() error {
	if r.TaxRate < 0 || r.TaxRate > 100 || math.IsNaN(r.TaxRate) {
		return invalidPricing(fmt.Sprintf("tax rate %v outside 0-100", r.TaxRate), nil)
	}
	if r.DiscountRate < 0 || r.DiscountRate > 100 || math.IsNaN(r.DiscountRate) {
		return invalidPricing(fmt.Sprintf("discount rate %v outside 0-100", r.DiscountRate), nil)
	}
	return nil
}

// roundCents rounds half away from zero.
func roundCents(v float64) int64 {
	return int64(math.Round(v))
}

func invalidPricing(msg string, details interface{}) error {
	e := apperr.Validation(msg).WithOp(pricingOp)
	if details != nil {
		e = e.WithDetails(details)
	}
	return e
}
