// Package core holds the domain types, money and date helpers, and the error
// taxonomy shared by every layer.
//
// Amounts are shopspring decimals. They marshal to JSON as plain numbers so a
// salary of 50500 round-trips as 50500, not "50500".
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// groupedAmount matches comma thousands separators: 1,000 or 1,234.56.
var groupedAmount = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseAmount converts a request value into a decimal.
//
// Strings use a dot as the decimal separator. Commas are only accepted as
// thousands separators (1,234.56); anything else with a comma is rejected.
// Numbers coming from encoding/json arrive as float64 and are converted
// exactly as printed.
func ParseAmount(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, ErrInvalidAmount
	case decimal.Decimal:
		return val, nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case float32:
		return decimal.NewFromFloat32(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case json.Number:
		return parseAmountString(val.String())
	case string:
		return parseAmountString(val)
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}
}

func parseAmountString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		if !groupedAmount.MatchString(s) {
			return decimal.Zero, ErrInvalidAmount
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// PositiveAmount parses v and requires it to be strictly greater than zero.
func PositiveAmount(field string, v any) (decimal.Decimal, error) {
	d, err := ParseAmount(v)
	if err != nil {
		return decimal.Zero, Invalid(field, "must be a valid number")
	}
	if !d.IsPositive() {
		return decimal.Zero, Invalid(field, "must be greater than 0")
	}
	return d, nil
}

// NonNegativeAmount parses v and rejects negative values. A nil value is zero.
func NonNegativeAmount(field string, v any) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	d, err := ParseAmount(v)
	if err != nil {
		return decimal.Zero, Invalid(field, "must be a valid number")
	}
	if d.IsNegative() {
		return decimal.Zero, Invalid(field, "must not be negative")
	}
	return d, nil
}

// Sum adds amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Float returns the float64 value of d for ratio computations.
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
