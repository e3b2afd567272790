package http

// Request parsing: bodies arrive as JSON or form data with camelCase or
// snake_case keys and a few legacy aliases. Everything is normalised to the
// canonical snake_case column names before it reaches a service.

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"accounting/internal/core"
	"accounting/internal/services"
)

const maxBodyBytes = 10 << 20

// aliases maps alternate snake_case keys to canonical ones per resource.
var aliases = map[core.Resource]map[string]string{
	core.ResourceBills: {
		"vendor_name": "vendor",
		"date":        "bill_date",
	},
	core.ResourceBudgets: {
		"category":   "category_name",
		"amount":     "budget_limit",
		"limit":      "budget_limit",
		"start_date": "month",
	},
	core.ResourceCashTransactions: {
		"date": "transaction_date",
		"type": "transaction_type",
	},
	core.ResourcePettyExpenses: {
		"date": "expense_date",
	},
	core.ResourceReminders: {
		"date": "reminder_date",
		"time": "reminder_time",
	},
}

// camelToSnake converts "billDate" to "bill_date" and "cardID" to "card_id".
func camelToSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || (nextLower && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// snakeToCamel converts "start_date" to "startDate".
func snakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// normalizeKeys rewrites raw keys to canonical names for resource. A key that
// is already canonical wins over any alias that maps onto it.
func normalizeKeys(resource core.Resource, raw map[string]any) services.Input {
	out := services.Input{}
	table := aliases[resource]

	type pending struct {
		key string
		val any
	}
	var aliased []pending

	for k, v := range raw {
		key := camelToSnake(k)
		if canonical, ok := table[key]; ok {
			aliased = append(aliased, pending{canonical, v})
			continue
		}
		if s, ok := v.(string); ok {
			v = sanitizeInput(s)
		}
		out[key] = v
	}
	for _, p := range aliased {
		if _, exists := out[p.key]; exists {
			continue
		}
		if s, ok := p.val.(string); ok {
			p.val = sanitizeInput(s)
		}
		out[p.key] = p.val
	}
	return out
}

// sanitizeInput strips control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// RequestBodyParser reads a request body once and decodes it as JSON or
// form data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	data        map[string]any
	parsed      bool
	err         error
}

func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		var mbe *http.MaxBytesError
		if errors.As(p.err, &mbe) {
			p.err = core.Invalid("", "Request body too large")
		}
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.data = map[string]any{}
		return nil
	}

	if body[0] == '{' || strings.Contains(p.contentType, "json") {
		p.data = map[string]any{}
		if err := json.Unmarshal([]byte(body), &p.data); err != nil {
			p.err = core.Invalid("", "Invalid JSON body")
		}
		return p.err
	}

	form, err := url.ParseQuery(body)
	if err != nil {
		p.err = core.Invalid("", "Invalid form body")
		return p.err
	}
	p.data = make(map[string]any, len(form))
	for k, v := range form {
		if len(v) > 0 {
			p.data[k] = v[0]
		}
	}
	return nil
}

// Input parses the body and returns it normalised for resource.
func (p *RequestBodyParser) Input(resource core.Resource) (services.Input, error) {
	if err := p.Parse(); err != nil {
		return nil, err
	}
	return normalizeKeys(resource, p.data), nil
}

// Get returns the trimmed string value of key, accepting either casing.
func (p *RequestBodyParser) Get(key string) string {
	if err := p.Parse(); err != nil {
		return ""
	}
	for _, k := range []string{key, snakeToCamel(key)} {
		if v, ok := p.data[k]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(v)))
		}
	}
	return ""
}

// Value returns the raw value of key, accepting either casing.
func (p *RequestBodyParser) Value(key string) any {
	if err := p.Parse(); err != nil {
		return nil
	}
	if v, ok := p.data[key]; ok {
		return v
	}
	return p.data[snakeToCamel(key)]
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// queryParam reads a query parameter by its snake_case name, falling back to
// the camelCase spelling.
func queryParam(r *http.Request, key string) string {
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get(key)); v != "" {
		return v
	}
	return strings.TrimSpace(q.Get(snakeToCamel(key)))
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := queryParam(r, key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, core.Invalid(key, "must be an integer")
	}
	return n, nil
}

func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	v := queryParam(r, key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, core.Invalid(key, "must be a number")
	}
	return f, nil
}

// queryBool returns nil when the parameter is absent.
func queryBool(r *http.Request, key string) (*bool, error) {
	v := queryParam(r, key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, core.Invalid(key, "must be a boolean")
	}
	return &b, nil
}

// queryDate validates an optional YYYY-MM-DD parameter.
func queryDate(r *http.Request, key string) (string, error) {
	v := queryParam(r, key)
	if v == "" {
		return "", nil
	}
	return core.ParseDate(key, v)
}
