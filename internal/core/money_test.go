package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  any
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.23", "1.23", true},
		{"1,000", "1000", true},
		{"1,234.56", "1234.56", true},
		{"12,345,678", "12345678", true},
		{"1,23", "", false},
		{"1,5", "", false},
		{"1,0000", "", false},
		{",100", "", false},
		{" 2.50 ", "2.5", true},
		{50000.0, "50000", true},
		{int64(7), "7", true},
		{json.Number("12.5"), "12.5", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{nil, "", false},
		{true, "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%v expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%v expected error", tc.in)
		}
	}
}

func TestPositiveAndNonNegativeAmount(t *testing.T) {
	if _, err := PositiveAmount("amount", 0.0); err == nil {
		t.Fatalf("zero must be rejected")
	}
	if _, err := PositiveAmount("amount", "-3"); err == nil {
		t.Fatalf("negative must be rejected")
	}
	if d, err := NonNegativeAmount("allowances", nil); err != nil || !d.IsZero() {
		t.Fatalf("nil should be zero, got %s %v", d, err)
	}
	if _, err := NonNegativeAmount("allowances", "-1"); err == nil {
		t.Fatalf("negative must be rejected")
	}
}

func TestDecimalMarshalsAsNumber(t *testing.T) {
	b, err := json.Marshal(map[string]decimal.Decimal{"net_salary": decimal.NewFromInt(50500)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"net_salary":50500}` {
		t.Fatalf("got %s", b)
	}
}
