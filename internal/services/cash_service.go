package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"accounting/internal/core"
	"accounting/internal/events"
	"accounting/internal/storage"
)

type CashFilter struct {
	StartDate string
	EndDate   string
	Type      string
	Category  string
	Limit     int
}

func (f CashFilter) filters() []storage.Filter {
	var out []storage.Filter
	if f.StartDate != "" {
		out = append(out, storage.Gte("transaction_date", f.StartDate))
	}
	if f.EndDate != "" {
		out = append(out, storage.Lte("transaction_date", f.EndDate))
	}
	if f.Type != "" {
		out = append(out, storage.Eq("transaction_type", f.Type))
	}
	if f.Category != "" {
		out = append(out, storage.Eq("category", f.Category))
	}
	return out
}

type CashStats struct {
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpense     decimal.Decimal `json:"total_expense"`
	NetBalance       decimal.Decimal `json:"net_balance"`
	TransactionCount int             `json:"transaction_count"`
}

// CashService manages cash transactions and the recorded cash-on-hand
// balance.
type CashService struct {
	base
}

// List returns cash transactions matching f, newest first.
func (s *CashService) List(ctx context.Context, f CashFilter) ([]core.CashTransaction, error) {
	rows, err := s.store.Select(ctx, core.ResourceCashTransactions.Table(), storage.Query{
		Filters: f.filters(),
		Order:   []storage.Order{storage.Desc("transaction_date"), storage.Desc("created_at")},
		Limit:   f.Limit,
	})
	if err != nil {
		return nil, core.Store("list cash transactions", err)
	}
	return mapRows(rows, toCashTransaction), nil
}

// Get returns one cash transaction.
func (s *CashService) Get(ctx context.Context, id string) (core.CashTransaction, error) {
	row, err := s.get(ctx, s.store, core.ResourceCashTransactions, "Cash transaction", id)
	if err != nil {
		return core.CashTransaction{}, err
	}
	return toCashTransaction(row), nil
}

func (s *CashService) validate(in Input) (storage.Row, error) {
	amount, err := core.PositiveAmount("amount", in["amount"])
	if err != nil {
		return nil, err
	}
	txType := in.String("transaction_type")
	if txType == "" {
		txType = core.TransactionExpense
	}
	if !core.OneOf(txType, core.TransactionIncome, core.TransactionExpense) {
		return nil, core.Invalid("transaction_type", "must be income or expense")
	}
	date, err := in.Date("transaction_date", s.today())
	if err != nil {
		return nil, err
	}
	description := in.String("description")
	if description == "" {
		description = "Cash transaction"
	}
	return storage.Row{
		"transaction_date": date,
		"description":      description,
		"amount":           amount,
		"transaction_type": txType,
		"category":         in.String("category"),
		"category_id":      in.String("category_id"),
		"notes":            in.String("notes"),
	}, nil
}

// Create stores a cash transaction. Type defaults to expense and the date to today.
func (s *CashService) Create(ctx context.Context, in Input, actorID string) (core.CashTransaction, error) {
	row, err := s.validate(in)
	if err != nil {
		return core.CashTransaction{}, err
	}
	row["created_by"] = actorID
	rows, err := s.store.Insert(ctx, core.ResourceCashTransactions.Table(), row)
	if err != nil {
		return core.CashTransaction{}, fmt.Errorf("create cash transaction: %w", core.Store("insert cash transaction", err))
	}
	tx := toCashTransaction(rows[0])
	s.changed(ctx, core.ResourceCashTransactions, events.ActionCreate, tx.ID, actorID)
	return tx, nil
}

// Update patches a cash transaction.
func (s *CashService) Update(ctx context.Context, id string, patch Input, actorID string) (core.CashTransaction, error) {
	current, err := s.get(ctx, s.store, core.ResourceCashTransactions, "Cash transaction", id)
	if err != nil {
		return core.CashTransaction{}, err
	}
	row, err := s.validate(merge(current, patch))
	if err != nil {
		return core.CashTransaction{}, err
	}
	rows, err := s.store.Update(ctx, core.ResourceCashTransactions.Table(), row, storage.Eq("id", id))
	if err != nil {
		return core.CashTransaction{}, fmt.Errorf("update cash transaction: %w", core.Store("update cash transaction", err))
	}
	updated, err := first(rows, "Cash transaction", id)
	if err != nil {
		return core.CashTransaction{}, err
	}
	s.changed(ctx, core.ResourceCashTransactions, events.ActionUpdate, id, actorID)
	return toCashTransaction(updated), nil
}

// Delete removes a cash transaction.
func (s *CashService) Delete(ctx context.Context, id, actorID string) (string, error) {
	rows, err := s.store.Delete(ctx, core.ResourceCashTransactions.Table(), storage.Eq("id", id))
	if err != nil {
		return "", fmt.Errorf("delete cash transaction: %w", core.Store("delete cash transaction", err))
	}
	if _, err := first(rows, "Cash transaction", id); err != nil {
		return "", err
	}
	s.changed(ctx, core.ResourceCashTransactions, events.ActionDelete, id, actorID)
	return "Transaction deleted successfully", nil
}

// Stats totals income and expense over f.
func (s *CashService) Stats(ctx context.Context, f CashFilter) (CashStats, error) {
	f.Limit = 0
	txs, err := s.List(ctx, f)
	if err != nil {
		return CashStats{}, err
	}
	st := CashStats{TotalIncome: decimal.Zero, TotalExpense: decimal.Zero, TransactionCount: len(txs)}
	for _, t := range txs {
		if t.TransactionType == core.TransactionIncome {
			st.TotalIncome = st.TotalIncome.Add(t.Amount)
		} else {
			st.TotalExpense = st.TotalExpense.Add(t.Amount)
		}
	}
	st.NetBalance = st.TotalIncome.Sub(st.TotalExpense)
	return st, nil
}

// LatestBalance returns the most recently recorded cash-on-hand, or nil when
// none has been recorded.
func (s *CashService) LatestBalance(ctx context.Context) (*core.CashBalance, error) {
	rows, err := s.store.Select(ctx, core.ResourceCashBalance.Table(), storage.Query{
		Order: []storage.Order{storage.Desc("recorded_at")},
		Limit: 1,
	})
	if err != nil {
		return nil, core.Store("select cash balance", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	b := toCashBalance(rows[0])
	return &b, nil
}

// RecordBalance appends a counted cash-on-hand figure.
func (s *CashService) RecordBalance(ctx context.Context, amount any, notes, actorID string) (core.CashBalance, error) {
	d, err := core.ParseAmount(amount)
	if err != nil {
		return core.CashBalance{}, core.Invalid("amount", "must be a valid number")
	}
	rows, err := s.store.Insert(ctx, core.ResourceCashBalance.Table(), storage.Row{
		"amount":      d,
		"notes":       notes,
		"recorded_at": s.now(),
		"created_by":  actorID,
	})
	if err != nil {
		return core.CashBalance{}, core.Store("insert cash balance", err)
	}
	b := toCashBalance(rows[0])
	s.changed(ctx, core.ResourceCashBalance, events.ActionCreate, b.ID, actorID)
	return b, nil
}
