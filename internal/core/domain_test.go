package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNetSalary(t *testing.T) {
	cases := []struct {
		base, allow, ded string
		want             string
	}{
		{"50000", "2000", "1500", "50500"},
		{"1000", "0", "0", "1000"},
		{"1000.50", "10.25", "0.75", "1010"},
	}
	for _, tc := range cases {
		got := NetSalary(decimal.RequireFromString(tc.base), decimal.RequireFromString(tc.allow), decimal.RequireFromString(tc.ded))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("NetSalary(%s,%s,%s) = %s, want %s", tc.base, tc.allow, tc.ded, got, tc.want)
		}
	}
}

func TestBudgetUtilizationAndLabel(t *testing.T) {
	b := Budget{CategoryName: "Travel", BudgetLimit: decimal.NewFromInt(1000), Spent: decimal.NewFromInt(850)}
	if got := b.Utilization(); got != 0.85 {
		t.Fatalf("utilization = %v, want 0.85", got)
	}
	if b.Label() != "Travel" {
		t.Fatalf("label = %q", b.Label())
	}

	empty := Budget{}
	if empty.Utilization() != 0 {
		t.Fatalf("zero-limit budget should have zero utilization")
	}
	if empty.Label() != "Uncategorized" {
		t.Fatalf("label = %q", empty.Label())
	}
}

func TestParseDateAndMonth(t *testing.T) {
	if d, err := ParseDate("bill_date", "2025-03-04"); err != nil || d != "2025-03-04" {
		t.Fatalf("ParseDate = %q, %v", d, err)
	}
	if d, err := ParseDate("bill_date", "2025-03-04T10:00:00Z"); err != nil || d != "2025-03-04" {
		t.Fatalf("ParseDate rfc3339 = %q, %v", d, err)
	}
	if _, err := ParseDate("bill_date", "04/03/2025"); err == nil {
		t.Fatalf("expected error for non-ISO date")
	}
	if _, err := ParseDate("bill_date", 42.0); err == nil {
		t.Fatalf("expected error for number")
	}

	if m, err := ParseMonth("month", "2025-01"); err != nil || m != "2025-01" {
		t.Fatalf("ParseMonth = %q, %v", m, err)
	}
	if m, err := ParseMonth("month", "2025-01-17"); err != nil || m != "2025-01" {
		t.Fatalf("ParseMonth date = %q, %v", m, err)
	}
	if a, err := MonthAnchor("month", "2025-07"); err != nil || a != "2025-07-01" {
		t.Fatalf("MonthAnchor = %q, %v", a, err)
	}

	now := time.Date(2025, 5, 17, 15, 4, 5, 0, time.UTC)
	if got := StartOfMonth(now); !got.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("StartOfMonth = %v", got)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	err := Store("select bills", errors.New("connection reset"))
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "select bills" {
		t.Fatalf("expected StoreError, got %T", err)
	}

	nf := NotFound("Bill", "42")
	if got := Store("get bill", nf); got != nf {
		t.Fatalf("domain errors must pass through Store unchanged")
	}
	if nf.Error() != "Bill not found" {
		t.Fatalf("message = %q", nf.Error())
	}

	ve := Invalid("amount", "must be greater than 0")
	if ve.Error() != "amount: must be greater than 0" {
		t.Fatalf("message = %q", ve.Error())
	}
	if Store("x", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}
