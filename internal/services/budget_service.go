package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"accounting/internal/core"
	"accounting/internal/events"
	"accounting/internal/storage"
)

// DefaultAlertThreshold is the utilization ratio at which a budget alerts.
const DefaultAlertThreshold = 0.8

type BudgetFilter struct {
	Period   string
	Month    string
	IsActive *bool
}

func (f BudgetFilter) filters() []storage.Filter {
	var out []storage.Filter
	if f.Period != "" {
		out = append(out, storage.Eq("period", f.Period))
	}
	if f.Month != "" {
		out = append(out, storage.Eq("month", f.Month))
	}
	if f.IsActive != nil {
		out = append(out, storage.Eq("is_active", *f.IsActive))
	}
	return out
}

// BudgetAlert is a budget together with its utilization ratio.
type BudgetAlert struct {
	core.Budget
	Utilization float64 `json:"utilization"`
}

type BudgetStats struct {
	TotalBudgets  int             `json:"total_budgets"`
	ActiveBudgets int             `json:"active_budgets"`
	TotalLimit    decimal.Decimal `json:"total_limit"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	Utilization   float64         `json:"utilization"`
}

type BudgetService struct {
	base
}

// List returns budgets matching f.
func (s *BudgetService) List(ctx context.Context, f BudgetFilter) ([]core.Budget, error) {
	rows, err := s.store.Select(ctx, core.ResourceBudgets.Table(), storage.Query{
		Filters: f.filters(),
		Order:   []storage.Order{storage.Desc("month"), storage.Asc("category_name")},
	})
	if err != nil {
		return nil, core.Store("list budgets", err)
	}
	return mapRows(rows, toBudget), nil
}

// Get returns one budget.
func (s *BudgetService) Get(ctx context.Context, id string) (core.Budget, error) {
	row, err := s.get(ctx, s.store, core.ResourceBudgets, "Budget", id)
	if err != nil {
		return core.Budget{}, err
	}
	return toBudget(row), nil
}

func (s *BudgetService) validate(in Input) (storage.Row, error) {
	if in.String("category_name") == "" && in.String("category_id") == "" {
		return nil, core.Invalid("category_name", "category_name or category_id is required")
	}
	limit, err := core.PositiveAmount("budget_limit", in["budget_limit"])
	if err != nil {
		return nil, err
	}
	spent, err := in.Amount("spent", decimal.Zero)
	if err != nil {
		return nil, err
	}
	period := in.String("period")
	if period == "" {
		period = core.PeriodMonthly
	}
	if !core.OneOf(period, core.PeriodMonthly, core.PeriodQuarterly, core.PeriodYearly) {
		return nil, core.Invalid("period", "must be monthly, quarterly or yearly")
	}
	month := core.StartOfMonth(s.now()).Format(core.DateLayout)
	if in.String("month") != "" {
		if month, err = core.MonthAnchor("month", in["month"]); err != nil {
			return nil, err
		}
	}
	active, err := in.Bool("is_active", true)
	if err != nil {
		return nil, err
	}
	return storage.Row{
		"category_id":   in.String("category_id"),
		"category_name": in.String("category_name"),
		"budget_limit":  limit,
		"spent":         spent,
		"period":        period,
		"month":         month,
		"is_active":     active,
	}, nil
}

// Create validates and stores a budget with spent at zero.
func (s *BudgetService) Create(ctx context.Context, in Input, actorID string) (core.Budget, error) {
	in = merge(nil, in)
	in["spent"] = nil
	in["is_active"] = true
	row, err := s.validate(in)
	if err != nil {
		return core.Budget{}, err
	}
	row["created_by"] = actorID
	rows, err := s.store.Insert(ctx, core.ResourceBudgets.Table(), row)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", core.Store("insert budget", err))
	}
	b := toBudget(rows[0])
	s.changed(ctx, core.ResourceBudgets, events.ActionCreate, b.ID, actorID)
	return b, nil
}

// Update patches a budget.
func (s *BudgetService) Update(ctx context.Context, id string, patch Input, actorID string) (core.Budget, error) {
	current, err := s.get(ctx, s.store, core.ResourceBudgets, "Budget", id)
	if err != nil {
		return core.Budget{}, err
	}
	row, err := s.validate(merge(current, patch))
	if err != nil {
		return core.Budget{}, err
	}
	return s.write(ctx, id, row, actorID)
}

// UpdateSpent overwrites the spent amount.
func (s *BudgetService) UpdateSpent(ctx context.Context, id string, v any, actorID string) (core.Budget, error) {
	spent, err := core.NonNegativeAmount("spent", v)
	if err != nil {
		return core.Budget{}, err
	}
	if v == nil {
		return core.Budget{}, core.Invalid("spent", "is required")
	}
	return s.write(ctx, id, storage.Row{"spent": spent}, actorID)
}

func (s *BudgetService) write(ctx context.Context, id string, row storage.Row, actorID string) (core.Budget, error) {
	rows, err := s.store.Update(ctx, core.ResourceBudgets.Table(), row, storage.Eq("id", id))
	if err != nil {
		return core.Budget{}, core.Store("update budget", err)
	}
	updated, err := first(rows, "Budget", id)
	if err != nil {
		return core.Budget{}, err
	}
	s.changed(ctx, core.ResourceBudgets, events.ActionUpdate, id, actorID)
	return toBudget(updated), nil
}

// Delete removes a budget.
func (s *BudgetService) Delete(ctx context.Context, id, actorID string) (string, error) {
	rows, err := s.store.Delete(ctx, core.ResourceBudgets.Table(), storage.Eq("id", id))
	if err != nil {
		return "", core.Store("delete budget", err)
	}
	if _, err := first(rows, "Budget", id); err != nil {
		return "", err
	}
	s.changed(ctx, core.ResourceBudgets, events.ActionDelete, id, actorID)
	return "Budget deleted successfully", nil
}

// Alerts returns the active budgets with a positive limit whose utilization
// is at least threshold, highest first.
func (s *BudgetService) Alerts(ctx context.Context, threshold float64) ([]BudgetAlert, error) {
	if threshold <= 0 || math.IsNaN(threshold) {
		threshold = DefaultAlertThreshold
	}
	active := true
	budgets, err := s.List(ctx, BudgetFilter{IsActive: &active})
	if err != nil {
		return nil, err
	}
	out := []BudgetAlert{}
	for _, b := range budgets {
		if !b.BudgetLimit.IsPositive() {
			continue
		}
		if u := b.Utilization(); u >= threshold {
			out = append(out, BudgetAlert{Budget: b, Utilization: u})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Utilization > out[j].Utilization })
	return out, nil
}

// Stats summarises limits, spending and utilization.
func (s *BudgetService) Stats(ctx context.Context) (BudgetStats, error) {
	budgets, err := s.List(ctx, BudgetFilter{})
	if err != nil {
		return BudgetStats{}, err
	}
	st := BudgetStats{TotalBudgets: len(budgets), TotalLimit: decimal.Zero, TotalSpent: decimal.Zero}
	for _, b := range budgets {
		if !b.IsActive {
			continue
		}
		st.ActiveBudgets++
		st.TotalLimit = st.TotalLimit.Add(b.BudgetLimit)
		st.TotalSpent = st.TotalSpent.Add(b.Spent)
	}
	if st.TotalLimit.IsPositive() {
		st.Utilization = core.Float(st.TotalSpent.Div(st.TotalLimit).Mul(decimal.NewFromInt(100)).Round(2))
	}
	return st, nil
}
