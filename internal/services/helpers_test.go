package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"accounting/internal/events"
	"accounting/internal/storage"
)

var dbSeq atomic.Int64

var fixedNow = time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	store  *storage.SQLStore
	events *events.Recorder
	set    *Set
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:services_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	st, err := storage.Open(context.Background(), storage.SQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	rec := &events.Recorder{}
	return &testEnv{
		store:  st,
		events: rec,
		set: NewSet(Deps{
			Store:  st,
			Events: rec,
			Now:    func() time.Time { return fixedNow },
		}),
	}
}

func (e *testEnv) card(t *testing.T, number string) string {
	t.Helper()
	c, err := e.set.Cards.Create(context.Background(), Input{
		"card_number": number,
		"card_holder": "Jane Doe",
		"bank":        "ACME",
		"card_limit":  5000.0,
	}, "admin-1")
	require.NoError(t, err)
	return c.ID
}

func (e *testEnv) employee(t *testing.T, email string) string {
	t.Helper()
	emp, err := e.set.Employees.Create(context.Background(), Input{
		"first_name":  "Ada",
		"last_name":   "Lovelace",
		"email":       email,
		"base_salary": 50000.0,
	}, "admin-1")
	require.NoError(t, err)
	return emp.ID
}
