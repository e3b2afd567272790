package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"accounting/internal/core"
)

func TestCamelToSnake(t *testing.T) {
	tests := map[string]string{
		"billDate":      "bill_date",
		"cardID":        "card_id",
		"vendor":        "vendor",
		"already_snake": "already_snake",
		"HTTPServer":    "http_server",
		"address1Line":  "address1_line",
	}
	for in, want := range tests {
		if got := camelToSnake(in); got != want {
			t.Errorf("camelToSnake(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSnakeToCamel(t *testing.T) {
	if got := snakeToCamel("start_date"); got != "startDate" {
		t.Errorf("snakeToCamel = %q", got)
	}
	if got := snakeToCamel("period"); got != "period" {
		t.Errorf("snakeToCamel = %q", got)
	}
}

func TestNormalizeKeys(t *testing.T) {
	tests := []struct {
		name     string
		resource core.Resource
		raw      map[string]any
		want     map[string]any
	}{
		{
			name:     "bill aliases",
			resource: core.ResourceBills,
			raw:      map[string]any{"vendorName": "Acme", "date": "2025-07-01", "billNumber": "INV-1"},
			want:     map[string]any{"vendor": "Acme", "bill_date": "2025-07-01", "bill_number": "INV-1"},
		},
		{
			name:     "canonical key wins",
			resource: core.ResourceBills,
			raw:      map[string]any{"date": "2025-07-01", "billDate": "2025-07-02"},
			want:     map[string]any{"bill_date": "2025-07-02"},
		},
		{
			name:     "budget aliases",
			resource: core.ResourceBudgets,
			raw:      map[string]any{"category": "Travel", "limit": 500.0, "startDate": "2025-07"},
			want:     map[string]any{"category_name": "Travel", "budget_limit": 500.0, "month": "2025-07"},
		},
		{
			name:     "cash aliases",
			resource: core.ResourceCashTransactions,
			raw:      map[string]any{"type": "income", "date": "2025-07-01"},
			want:     map[string]any{"transaction_type": "income", "transaction_date": "2025-07-01"},
		},
		{
			name:     "aliases are per resource",
			resource: core.ResourceEmployees,
			raw:      map[string]any{"date": "2025-07-01"},
			want:     map[string]any{"date": "2025-07-01"},
		},
		{
			name:     "control characters stripped",
			resource: core.ResourcePettyExpenses,
			raw:      map[string]any{"description": "Taxi\x00\x07 ride\n"},
			want:     map[string]any{"description": "Taxi ride\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeKeys(tt.resource, tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestRequestBodyParser(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"firstName":" Ada ","amount":12.5}`))
		req.Header.Set("Content-Type", "application/json")
		p := NewRequestBodyParser(httptest.NewRecorder(), req)

		if got := p.Get("first_name"); got != "Ada" {
			t.Errorf("Get(first_name) = %q", got)
		}
		if got := p.Get("amount"); got != "12.5" {
			t.Errorf("Get(amount) = %q", got)
		}
		if got := p.Value("amount"); got != 12.5 {
			t.Errorf("Value(amount) = %v", got)
		}
	})

	t.Run("form", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("description=Taxi&date=2025-07-10"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		in, err := NewRequestBodyParser(httptest.NewRecorder(), req).Input(core.ResourcePettyExpenses)
		if err != nil {
			t.Fatalf("Input: %v", err)
		}
		if in["expense_date"] != "2025-07-10" || in["description"] != "Taxi" {
			t.Errorf("Input = %v", in)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		in, err := NewRequestBodyParser(httptest.NewRecorder(), req).Input(core.ResourceBills)
		if err != nil || len(in) != 0 {
			t.Errorf("Input = %v, %v; want empty", in, err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"vendor":`))
		req.Header.Set("Content-Type", "application/json")
		_, err := NewRequestBodyParser(httptest.NewRecorder(), req).Input(core.ResourceBills)
		var ve *core.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
		if ve.Message != "Invalid JSON body" {
			t.Errorf("message = %q", ve.Message)
		}
	})
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/?startDate=2025-07-01&limit=5&threshold=0.9&is_active=false&bad=x&end_date=01-07-2025", nil)

	if got := queryParam(req, "start_date"); got != "2025-07-01" {
		t.Errorf("queryParam camel fallback = %q", got)
	}
	if n, err := queryInt(req, "limit", 10); err != nil || n != 5 {
		t.Errorf("queryInt = %d, %v", n, err)
	}
	if n, err := queryInt(req, "missing", 10); err != nil || n != 10 {
		t.Errorf("queryInt default = %d, %v", n, err)
	}
	if _, err := queryInt(req, "bad", 10); err == nil {
		t.Error("queryInt accepted a non-integer")
	}
	if f, err := queryFloat(req, "threshold", 0.8); err != nil || f != 0.9 {
		t.Errorf("queryFloat = %v, %v", f, err)
	}
	if b, err := queryBool(req, "is_active"); err != nil || b == nil || *b {
		t.Errorf("queryBool = %v, %v", b, err)
	}
	if b, err := queryBool(req, "missing"); err != nil || b != nil {
		t.Errorf("queryBool absent = %v, %v", b, err)
	}
	if d, err := queryDate(req, "start_date"); err != nil || d != "2025-07-01" {
		t.Errorf("queryDate = %q, %v", d, err)
	}
	if _, err := queryDate(req, "end_date"); err == nil {
		t.Error("queryDate accepted DD-MM-YYYY")
	}
}
