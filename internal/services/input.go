package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"accounting/internal/core"
)

// Input is a canonical snake_case request body. Alias normalisation has
// already happened at the HTTP boundary.
type Input map[string]any

// Has reports whether key is present, even with a nil value.
func (in Input) Has(key string) bool {
	_, ok := in[key]
	return ok
}

// String returns the trimmed string value of key, or "" when absent or null.
func (in Input) String(key string) string {
	switch v := in[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// StringPtr returns nil for absent, null or empty values.
func (in Input) StringPtr(key string) *string {
	s := in.String(key)
	if s == "" {
		return nil
	}
	return &s
}

// Bool reads key as a boolean, def when absent.
func (in Input) Bool(key string, def bool) (bool, error) {
	switch v := in[key].(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def, core.Invalid(key, "must be a boolean")
		}
		return b, nil
	}
	return def, core.Invalid(key, "must be a boolean")
}

// Strings accepts a JSON array of strings or a comma-separated string.
func (in Input) Strings(key string) ([]string, error) {
	switch v := in[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			s, ok := x.(string)
			if !ok {
				return nil, core.Invalid(key, "must be a list of strings")
			}
			out = append(out, strings.TrimSpace(s))
		}
		return out, nil
	case string:
		var out []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	}
	return nil, core.Invalid(key, "must be a list of strings")
}

// Date returns the normalised date at key, or def when the key is absent or
// empty.
func (in Input) Date(key, def string) (string, error) {
	if in.String(key) == "" {
		return def, nil
	}
	return core.ParseDate(key, in[key])
}

// OptionalDate is Date with a nil result for empty values, for nullable DATE
// columns.
func (in Input) OptionalDate(key string) (any, error) {
	d, err := in.Date(key, "")
	if err != nil || d == "" {
		return nil, err
	}
	return d, nil
}

// Amount parses a non-negative amount, returning def when the key is absent.
func (in Input) Amount(key string, def decimal.Decimal) (decimal.Decimal, error) {
	if in[key] == nil {
		return def, nil
	}
	return core.NonNegativeAmount(key, in[key])
}

// Int reads key as an integer, def when absent.
func (in Input) Int(key string, def int) (int, error) {
	switch v := in[key].(type) {
	case nil:
		return def, nil
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def, core.Invalid(key, "must be an integer")
		}
		return n, nil
	}
	return def, core.Invalid(key, "must be an integer")
}

// merge returns the stored row overlaid with the patch keys. Stored
// time values become calendar dates so they validate like request input.
func merge(row map[string]any, patch Input) Input {
	out := Input{}
	for k, v := range row {
		if t, ok := v.(time.Time); ok {
			v = t.Format(core.DateLayout)
		}
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func required(in Input, fields ...string) error {
	for _, f := range fields {
		if in.String(f) == "" {
			return core.Invalid(f, "is required")
		}
	}
	return nil
}
