package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"accounting/internal/core"
	"accounting/internal/events"
	"accounting/internal/storage"
)

// Actor is the authenticated caller of an ownership-checked operation.
type Actor struct {
	ID   string
	Role core.Role
}

func (a Actor) owns(createdBy string) bool {
	return a.Role == core.RoleAdmin || a.ID == createdBy
}

type PettyFilter struct {
	StartDate string
	EndDate   string
	Category  string
	UserID    string
}

func (f PettyFilter) filters() []storage.Filter {
	var out []storage.Filter
	if f.StartDate != "" {
		out = append(out, storage.Gte("expense_date", f.StartDate))
	}
	if f.EndDate != "" {
		out = append(out, storage.Lte("expense_date", f.EndDate))
	}
	if f.Category != "" {
		out = append(out, storage.Eq("category", f.Category))
	}
	if f.UserID != "" {
		out = append(out, storage.Eq("created_by", f.UserID))
	}
	return out
}

type PettyStats struct {
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Count         int             `json:"count"`
	AverageAmount decimal.Decimal `json:"average_amount"`
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

type MonthlySummary struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	ByCategory []CategoryTotal `json:"by_category"`
}

// PettyService manages petty expenses. Users may change only their own
// records; admins may change any.
type PettyService struct {
	base
}

// List returns petty expenses matching f.
func (s *PettyService) List(ctx context.Context, f PettyFilter) ([]core.PettyExpense, error) {
	rows, err := s.store.Select(ctx, core.ResourcePettyExpenses.Table(), storage.Query{
		Filters: f.filters(),
		Order:   []storage.Order{storage.Desc("expense_date"), storage.Desc("created_at")},
	})
	if err != nil {
		return nil, core.Store("list petty expenses", err)
	}
	return mapRows(rows, toPettyExpense), nil
}

// Get returns one petty expense.
func (s *PettyService) Get(ctx context.Context, id string) (core.PettyExpense, error) {
	row, err := s.get(ctx, s.store, core.ResourcePettyExpenses, "Petty expense", id)
	if err != nil {
		return core.PettyExpense{}, err
	}
	return toPettyExpense(row), nil
}

func (s *PettyService) validate(in Input) (storage.Row, error) {
	if err := required(in, "description"); err != nil {
		return nil, err
	}
	amount, err := core.PositiveAmount("amount", in["amount"])
	if err != nil {
		return nil, err
	}
	date, err := in.Date("expense_date", s.today())
	if err != nil {
		return nil, err
	}
	return storage.Row{
		"description":  in.String("description"),
		"amount":       amount,
		"category":     in.String("category"),
		"expense_date": date,
	}, nil
}

// Create stores a petty expense owned by actorID.
func (s *PettyService) Create(ctx context.Context, in Input, actorID string) (core.PettyExpense, error) {
	row, err := s.validate(in)
	if err != nil {
		return core.PettyExpense{}, err
	}
	row["created_by"] = actorID
	rows, err := s.store.Insert(ctx, core.ResourcePettyExpenses.Table(), row)
	if err != nil {
		return core.PettyExpense{}, fmt.Errorf("create petty expense: %w", core.Store("insert petty expense", err))
	}
	e := toPettyExpense(rows[0])
	s.changed(ctx, core.ResourcePettyExpenses, events.ActionCreate, e.ID, actorID)
	return e, nil
}

// Update patches a petty expense.
func (s *PettyService) Update(ctx context.Context, id string, patch Input, actor Actor) (core.PettyExpense, error) {
	current, err := s.get(ctx, s.store, core.ResourcePettyExpenses, "Petty expense", id)
	if err != nil {
		return core.PettyExpense{}, err
	}
	if !actor.owns(current.String("created_by")) {
		return core.PettyExpense{}, core.Forbidden("You can only modify your own petty expenses")
	}
	row, err := s.validate(merge(current, patch))
	if err != nil {
		return core.PettyExpense{}, err
	}
	rows, err := s.store.Update(ctx, core.ResourcePettyExpenses.Table(), row, storage.Eq("id", id))
	if err != nil {
		return core.PettyExpense{}, core.Store("update petty expense", err)
	}
	updated, err := first(rows, "Petty expense", id)
	if err != nil {
		return core.PettyExpense{}, err
	}
	s.changed(ctx, core.ResourcePettyExpenses, events.ActionUpdate, id, actor.ID)
	return toPettyExpense(updated), nil
}

// Delete removes a petty expense.
func (s *PettyService) Delete(ctx context.Context, id string, actor Actor) (string, error) {
	current, err := s.get(ctx, s.store, core.ResourcePettyExpenses, "Petty expense", id)
	if err != nil {
		return "", err
	}
	if !actor.owns(current.String("created_by")) {
		return "", core.Forbidden("You can only delete your own petty expenses")
	}
	if _, err := s.store.Delete(ctx, core.ResourcePettyExpenses.Table(), storage.Eq("id", id)); err != nil {
		return "", core.Store("delete petty expense", err)
	}
	s.changed(ctx, core.ResourcePettyExpenses, events.ActionDelete, id, actor.ID)
	return "Petty expense deleted successfully", nil
}

// MonthlySummary totals one calendar month by category. Expenses without a
// category count as "uncategorized".
func (s *PettyService) MonthlySummary(ctx context.Context, year, month int) (MonthlySummary, error) {
	if month < 1 || month > 12 {
		return MonthlySummary{}, core.Invalid("month", "must be between 1 and 12")
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	expenses, err := s.List(ctx, PettyFilter{
		StartDate: start.Format(core.DateLayout),
		EndDate:   end.Format(core.DateLayout),
	})
	if err != nil {
		return MonthlySummary{}, err
	}

	sum := MonthlySummary{Year: year, Month: month, Total: decimal.Zero, Count: len(expenses)}
	byCat := map[string]*CategoryTotal{}
	for _, e := range expenses {
		cat := e.Category
		if cat == "" {
			cat = "uncategorized"
		}
		ct, ok := byCat[cat]
		if !ok {
			ct = &CategoryTotal{Category: cat, Total: decimal.Zero}
			byCat[cat] = ct
		}
		ct.Total = ct.Total.Add(e.Amount)
		ct.Count++
		sum.Total = sum.Total.Add(e.Amount)
	}
	sum.ByCategory = make([]CategoryTotal, 0, len(byCat))
	for _, ct := range byCat {
		sum.ByCategory = append(sum.ByCategory, *ct)
	}
	sort.Slice(sum.ByCategory, func(i, j int) bool {
		if c := sum.ByCategory[i].Total.Cmp(sum.ByCategory[j].Total); c != 0 {
			return c > 0
		}
		return sum.ByCategory[i].Category < sum.ByCategory[j].Category
	})
	return sum, nil
}

// Stats totals petty expenses over f.
func (s *PettyService) Stats(ctx context.Context, f PettyFilter) (PettyStats, error) {
	expenses, err := s.List(ctx, f)
	if err != nil {
		return PettyStats{}, err
	}
	st := PettyStats{TotalAmount: decimal.Zero, AverageAmount: decimal.Zero, Count: len(expenses)}
	for _, e := range expenses {
		st.TotalAmount = st.TotalAmount.Add(e.Amount)
	}
	if st.Count > 0 {
		st.AverageAmount = st.TotalAmount.Div(decimal.NewFromInt(int64(st.Count))).Round(2)
	}
	return st, nil
}
