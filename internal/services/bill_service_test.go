package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting/internal/core"
)

func balance(t *testing.T, e *testEnv, cardID string) string {
	t.Helper()
	c, err := e.set.Cards.Get(context.Background(), cardID)
	require.NoError(t, err)
	return c.Balance.StringFixed(2)
}

func TestBillService_CreateValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"empty vendor", Input{"vendor": "  ", "amount": 10.0}, "vendor"},
		{"zero amount", Input{"vendor": "ACME", "amount": 0.0}, "amount"},
		{"negative amount", Input{"vendor": "ACME", "amount": -5.0}, "amount"},
		{"bad amount", Input{"vendor": "ACME", "amount": "abc"}, "amount"},
		{"decimal comma", Input{"vendor": "ACME", "amount": "120,50"}, "amount"},
		{"bad status", Input{"vendor": "ACME", "amount": 10.0, "status": "lost"}, "status"},
		{"bad date", Input{"vendor": "ACME", "amount": 10.0, "bill_date": "15/07/2025"}, "bill_date"},
		{"unknown card", Input{"vendor": "ACME", "amount": 10.0, "card_id": "nope"}, "card_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.set.Bills.Create(ctx, tt.in, "u1")
			var ve *core.ValidationError
			require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	n, err := e.store.Count(ctx, "bills")
	require.NoError(t, err)
	assert.Zero(t, n, "invalid bills must not be persisted")
	assert.Empty(t, e.events.ChangesFor("bills"))
}

func TestBillService_CreateDefaultsAndCardBalance(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	cardID := e.card(t, "4111")

	bill, err := e.set.Bills.Create(ctx, Input{"vendor": "ACME", "amount": "120.50", "card_id": cardID}, "u1")
	require.NoError(t, err)

	assert.Equal(t, "2025-07-15", bill.BillDate)
	assert.Equal(t, core.BillPending, bill.Status)
	assert.Equal(t, "u1", bill.CreatedBy)
	require.NotNil(t, bill.CardID)
	assert.Equal(t, "120.50", balance(t, e, cardID))
	assert.Len(t, e.events.ChangesFor("bills"), 1)
}

func TestBillService_ThousandsSeparator(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	cardID := e.card(t, "4111")

	bill, err := e.set.Bills.Create(ctx, Input{"vendor": "ACME", "amount": "1,000", "card_id": cardID}, "u1")
	require.NoError(t, err)
	assert.True(t, bill.Amount.Equal(decimal.NewFromInt(1000)), bill.Amount.String())
	assert.Equal(t, "1000.00", balance(t, e, cardID))

	bill, err = e.set.Bills.Update(ctx, bill.ID, Input{"amount": "1,234.56"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "1234.56", bill.Amount.StringFixed(2))
	assert.Equal(t, "1234.56", balance(t, e, cardID))
}

func TestBillService_UpdateMovesBalance(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a := e.card(t, "4111")
	b := e.card(t, "4222")

	bill, err := e.set.Bills.Create(ctx, Input{"vendor": "ACME", "amount": 100.0, "card_id": a}, "u1")
	require.NoError(t, err)

	_, err = e.set.Bills.Update(ctx, bill.ID, Input{"amount": 150.0}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "150.00", balance(t, e, a), "same card adjusts by the difference")

	updated, err := e.set.Bills.Update(ctx, bill.ID, Input{"card_id": b, "amount": 80.0}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance(t, e, a))
	assert.Equal(t, "80.00", balance(t, e, b))
	assert.Equal(t, b, *updated.CardID)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(80)))

	_, err = e.set.Bills.Update(ctx, bill.ID, Input{"card_id": nil}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance(t, e, b))
}

func TestBillService_UpdateRollsBackOnInvalidCard(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a := e.card(t, "4111")

	bill, err := e.set.Bills.Create(ctx, Input{"vendor": "ACME", "amount": 100.0, "card_id": a}, "u1")
	require.NoError(t, err)

	_, err = e.set.Bills.Update(ctx, bill.ID, Input{"card_id": "missing"}, "u1")
	require.Error(t, err)

	got, err := e.set.Bills.Get(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, a, *got.CardID)
	assert.Equal(t, "100.00", balance(t, e, a))
}

func TestBillService_Delete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a := e.card(t, "4111")

	bill, err := e.set.Bills.Create(ctx, Input{"vendor": "ACME", "amount": 40.0, "card_id": a}, "u1")
	require.NoError(t, err)

	msg, err := e.set.Bills.Delete(ctx, bill.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Bill deleted successfully", msg)
	assert.Equal(t, "0.00", balance(t, e, a))

	_, err = e.set.Bills.Get(ctx, bill.ID)
	var nf *core.NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, "Bill not found", err.Error())

	_, err = e.set.Bills.Delete(ctx, bill.ID, "u1")
	assert.True(t, errors.As(err, &nf))
}

func TestBillService_ListAndStats(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	for _, in := range []Input{
		{"vendor": "A", "amount": 10.0, "bill_date": "2025-05-01", "status": "paid"},
		{"vendor": "B", "amount": 20.0, "bill_date": "2025-06-01", "status": "pending"},
		{"vendor": "C", "amount": 30.0, "bill_date": "2025-07-01", "status": "approved"},
	} {
		_, err := e.set.Bills.Create(ctx, in, "u1")
		require.NoError(t, err)
	}

	bills, err := e.set.Bills.List(ctx, BillFilter{StartDate: "2025-06-01"})
	require.NoError(t, err)
	require.Len(t, bills, 2)
	assert.Equal(t, "C", bills[0].Vendor)

	st, err := e.set.Bills.Stats(ctx, BillFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalBills)
	assert.Equal(t, "60", st.TotalAmount.String())
	assert.Equal(t, "20", st.AverageAmount.String())
	assert.Equal(t, 1, st.PaidCount)
	assert.Equal(t, 1, st.PendingCount)
	assert.Equal(t, 1, st.ApprovedCount)
	assert.Equal(t, 0, st.RejectedCount)
}

func TestBillService_HooksRunAfterCommit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	var seen []core.Resource
	e.set.OnChange(func(_ context.Context, r core.Resource) { seen = append(seen, r) })

	_, err := e.set.Bills.Create(ctx, Input{"vendor": "ACME", "amount": 5.0}, "u1")
	require.NoError(t, err)
	_, err = e.set.Bills.Create(ctx, Input{"vendor": "", "amount": 5.0}, "u1")
	require.Error(t, err)

	assert.Equal(t, []core.Resource{core.ResourceBills}, seen)
}

func TestBillService_PublishFailureIsSwallowed(t *testing.T) {
	e := newTestEnv(t)
	e.events.Err = errors.New("broker down")

	bill, err := e.set.Bills.Create(context.Background(), Input{"vendor": "ACME", "amount": 5.0}, "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, bill.ID)
}
