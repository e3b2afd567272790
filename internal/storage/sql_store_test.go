package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dbSeq atomic.Int64

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := fmt.Sprintf("file:store_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	s, err := Open(context.Background(), SQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertCard(t *testing.T, s Store, number string) Row {
	t.Helper()
	rows, err := s.Insert(context.Background(), "cards", Row{
		"card_number": number,
		"card_holder": "Jane Doe",
		"bank":        "ACME",
		"card_limit":  decimal.NewFromInt(5000),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0]
}

func TestInsertFillsIDAndTimestamps(t *testing.T) {
	s := newTestStore(t)
	card := insertCard(t, s, "4111")

	assert.NotEmpty(t, card.String("id"))
	assert.False(t, card.Time("created_at").IsZero())
	assert.Equal(t, "credit", card.String("card_type"))
	assert.True(t, card.Bool("is_active"))
	assert.True(t, card.Decimal("card_limit").Equal(decimal.NewFromInt(5000)))
	assert.True(t, card.Decimal("balance").IsZero())
}

func TestSelectFiltersAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, d := range []string{"2025-01-05", "2025-02-10", "2025-03-15"} {
		_, err := s.Insert(ctx, "petty_expenses", Row{
			"description":  fmt.Sprintf("exp %d", i),
			"amount":       decimal.NewFromInt(int64(10 * (i + 1))),
			"expense_date": d,
			"category":     "office",
		})
		require.NoError(t, err)
	}

	rows, err := s.Select(ctx, "petty_expenses", Query{
		Filters: []Filter{Gte("expense_date", "2025-02-01"), Lte("expense_date", "2025-03-31")},
		Order:   []Order{Desc("expense_date")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-03-15", rows[0].Date("expense_date"))
	assert.Equal(t, "2025-02-10", rows[1].Date("expense_date"))

	rows, err = s.Select(ctx, "petty_expenses", Query{Order: []Order{Asc("expense_date")}, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2025-02-10", rows[0].Date("expense_date"))

	rows, err = s.Select(ctx, "petty_expenses", Query{Filters: []Filter{In("description", "exp 0", "exp 2")}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = s.Select(ctx, "petty_expenses", Query{Filters: []Filter{In[string]("description")}})
	require.NoError(t, err)
	assert.Empty(t, rows)

	n, err := s.Count(ctx, "petty_expenses", Eq("category", "office"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUpdateAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	card := insertCard(t, s, "5500")
	id := card.String("id")

	updated, err := s.Update(ctx, "cards", Row{"is_active": false, "bank": "Other"}, Eq("id", id))
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.False(t, updated[0].Bool("is_active"))
	assert.Equal(t, "Other", updated[0].String("bank"))
	assert.Equal(t, id, updated[0].String("id"))

	deleted, err := s.Delete(ctx, "cards", Eq("id", id))
	require.NoError(t, err)
	assert.Len(t, deleted, 1)

	_, err = s.Get(ctx, "cards", id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdjustIsRelative(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := insertCard(t, s, "6011").String("id")

	require.NoError(t, s.Adjust(ctx, "cards", "balance", id, decimal.RequireFromString("120.50")))
	require.NoError(t, s.Adjust(ctx, "cards", "balance", id, decimal.RequireFromString("-20.25")))

	row, err := s.Get(ctx, "cards", id)
	require.NoError(t, err)
	assert.True(t, row.Decimal("balance").Equal(decimal.RequireFromString("100.25")), row.Decimal("balance").String())

	err = s.Adjust(ctx, "cards", "balance", "missing", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := insertCard(t, s, "3782").String("id")

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx Store) error {
		if err := tx.Adjust(ctx, "cards", "balance", id, decimal.NewFromInt(99)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	row, err := s.Get(ctx, "cards", id)
	require.NoError(t, err)
	assert.True(t, row.Decimal("balance").IsZero())

	err = s.InTx(ctx, func(tx Store) error {
		return tx.InTx(ctx, func(inner Store) error {
			return inner.Adjust(ctx, "cards", "balance", id, decimal.NewFromInt(5))
		})
	})
	require.NoError(t, err)
	row, err = s.Get(ctx, "cards", id)
	require.NoError(t, err)
	assert.True(t, row.Decimal("balance").Equal(decimal.NewFromInt(5)))
}

func TestIdentifiersAreValidated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name string
		run  func() error
	}{
		{"table", func() error { _, err := s.Select(ctx, "cards; DROP TABLE cards", Query{}); return err }},
		{"column", func() error { _, err := s.Select(ctx, "cards", Query{Filters: []Filter{Eq("id OR 1=1", "x")}}); return err }},
		{"order", func() error { _, err := s.Select(ctx, "cards", Query{Order: []Order{Desc("Bank")}}); return err }},
		{"insert key", func() error { _, err := s.Insert(ctx, "cards", Row{"bad-key": 1}); return err }},
		{"operator", func() error {
			_, err := s.Select(ctx, "cards", Query{Filters: []Filter{{Column: "bank", Op: "LIKE", Value: "%"}}})
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidIdentifier) || errors.Is(err, ErrInvalidOperator), err.Error())
		})
	}
}

func TestErrorsCarryOperationAndTable(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Select(context.Background(), "no_such_table", Query{})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "select no_such_table:"), err.Error())
}

func TestRowAccessors(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	r := Row{
		"s":     "x",
		"b":     int64(1),
		"bb":    true,
		"n":     int64(42),
		"f":     12.5,
		"ds":    "2025-04-01T00:00:00Z",
		"dt":    now,
		"ts":    SQLite.Timestamp(now),
		"arr":   `["email","sms"]`,
		"bad":   "not json",
		"null":  nil,
		"money": "1234.56",
	}
	assert.Equal(t, "x", r.String("s"))
	assert.Nil(t, r.StringPtr("null"))
	assert.True(t, r.Bool("b"))
	assert.True(t, r.Bool("bb"))
	assert.Equal(t, 42, r.Int("n"))
	assert.True(t, r.Decimal("f").Equal(decimal.RequireFromString("12.5")))
	assert.True(t, r.Decimal("money").Equal(decimal.RequireFromString("1234.56")))
	assert.Equal(t, "2025-04-01", r.Date("ds"))
	assert.Equal(t, "2025-04-01", r.Date("dt"))
	assert.True(t, r.Time("ts").Equal(now))
	assert.Nil(t, r.TimePtr("null"))
	assert.Equal(t, []string{"email", "sms"}, r.Strings("arr"))
	assert.Equal(t, []string{}, r.Strings("bad"))
}

func TestDialectPlaceholders(t *testing.T) {
	where, args, err := whereClause(Postgres, []Filter{Eq("a", 1), In("b", 2, 3), Eq("c", nil)}, 2)
	require.NoError(t, err)
	assert.Equal(t, " WHERE a = $2 AND b IN ($3, $4) AND c IS NULL", where)
	assert.Len(t, args, 3)

	where, _, err = whereClause(SQLite, []Filter{Gte("d", "2025-01-01")}, 1)
	require.NoError(t, err)
	assert.Equal(t, " WHERE d >= ?", where)

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}
