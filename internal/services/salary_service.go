package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"accounting/internal/core"
	"accounting/internal/events"
	"accounting/internal/storage"
)

type SalaryFilter struct {
	EmployeeID string
	Month      string
	Status     string
	PaidFrom   string
	PaidTo     string
}

func (f SalaryFilter) filters() []storage.Filter {
	var out []storage.Filter
	if f.EmployeeID != "" {
		out = append(out, storage.Eq("employee_id", f.EmployeeID))
	}
	if f.Month != "" {
		out = append(out, storage.Eq("month", f.Month))
	}
	if f.Status != "" {
		out = append(out, storage.Eq("status", f.Status))
	}
	if f.PaidFrom != "" {
		out = append(out, storage.Gte("paid_date", f.PaidFrom))
	}
	if f.PaidTo != "" {
		out = append(out, storage.Lte("paid_date", f.PaidTo))
	}
	return out
}

type SalaryStats struct {
	TotalPayroll decimal.Decimal `json:"total_payroll"`
	PaidCount    int             `json:"paid_count"`
	PendingCount int             `json:"pending_count"`
	Count        int             `json:"count"`
}

// SalaryService owns salary records. net_salary is always derived from its
// components and never taken from input.
type SalaryService struct {
	base
}

// List returns salaries matching f, latest month first.
func (s *SalaryService) List(ctx context.Context, f SalaryFilter) ([]core.Salary, error) {
	rows, err := s.store.Select(ctx, core.ResourceSalaries.Table(), storage.Query{
		Filters: f.filters(),
		Order:   []storage.Order{storage.Desc("month"), storage.Desc("created_at")},
	})
	if err != nil {
		return nil, core.Store("list salaries", err)
	}
	salaries := mapRows(rows, toSalary)
	if err := s.withEmployeeNames(ctx, salaries); err != nil {
		return nil, err
	}
	return salaries, nil
}

// ByEmployee returns one employee's salary history.
func (s *SalaryService) ByEmployee(ctx context.Context, employeeID string) ([]core.Salary, error) {
	return s.List(ctx, SalaryFilter{EmployeeID: employeeID})
}

// Get returns one salary.
func (s *SalaryService) Get(ctx context.Context, id string) (core.Salary, error) {
	row, err := s.get(ctx, s.store, core.ResourceSalaries, "Salary", id)
	if err != nil {
		return core.Salary{}, err
	}
	sal := []core.Salary{toSalary(row)}
	if err := s.withEmployeeNames(ctx, sal); err != nil {
		return core.Salary{}, err
	}
	return sal[0], nil
}

// withEmployeeNames fills EmployeeName with one extra query.
func (s *SalaryService) withEmployeeNames(ctx context.Context, salaries []core.Salary) error {
	if len(salaries) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var ids []string
	for _, sal := range salaries {
		if !seen[sal.EmployeeID] {
			seen[sal.EmployeeID] = true
			ids = append(ids, sal.EmployeeID)
		}
	}
	rows, err := s.store.Select(ctx, core.ResourceEmployees.Table(), storage.Query{
		Columns: []string{"id", "first_name", "last_name"},
		Filters: []storage.Filter{storage.In("id", ids...)},
	})
	if err != nil {
		return core.Store("select employees", err)
	}
	names := make(map[string]string, len(rows))
	for _, r := range rows {
		names[r.String("id")] = toEmployee(r).FullName()
	}
	for i := range salaries {
		salaries[i].EmployeeName = names[salaries[i].EmployeeID]
	}
	return nil
}

func (s *SalaryService) validate(in Input) (storage.Row, error) {
	if err := required(in, "employee_id"); err != nil {
		return nil, err
	}
	if in.String("month") == "" {
		return nil, core.Invalid("month", "is required")
	}
	month, err := core.ParseMonth("month", in["month"])
	if err != nil {
		return nil, err
	}
	base, err := in.Amount("base_salary", decimal.Zero)
	if err != nil {
		return nil, err
	}
	allowances, err := in.Amount("allowances", decimal.Zero)
	if err != nil {
		return nil, err
	}
	deductions, err := in.Amount("deductions", decimal.Zero)
	if err != nil {
		return nil, err
	}
	status := in.String("status")
	if status == "" {
		status = core.SalaryPending
	}
	if !core.OneOf(status, core.SalaryPending, core.SalaryPaid) {
		return nil, core.Invalid("status", "must be pending or paid")
	}
	paidDate, err := in.OptionalDate("paid_date")
	if err != nil {
		return nil, err
	}
	return storage.Row{
		"employee_id": in.String("employee_id"),
		"month":       month,
		"base_salary": base,
		"allowances":  allowances,
		"deductions":  deductions,
		"net_salary":  core.NetSalary(base, allowances, deductions),
		"status":      status,
		"paid_date":   paidDate,
	}, nil
}

func (s *SalaryService) requireEmployee(ctx context.Context, st storage.Store, id string) error {
	n, err := st.Count(ctx, core.ResourceEmployees.Table(), storage.Eq("id", id))
	if err != nil {
		return core.Store("check employee", err)
	}
	if n == 0 {
		return core.Invalid("employee_id", "employee not found")
	}
	return nil
}

// Create stores a pending salary with a computed net.
func (s *SalaryService) Create(ctx context.Context, in Input, actorID string) (core.Salary, error) {
	in = merge(nil, in)
	delete(in, "net_salary")
	in["status"] = core.SalaryPending
	row, err := s.validate(in)
	if err != nil {
		return core.Salary{}, err
	}
	row["created_by"] = actorID

	var created storage.Row
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		if err := s.requireEmployee(ctx, tx, in.String("employee_id")); err != nil {
			return err
		}
		rows, err := tx.Insert(ctx, core.ResourceSalaries.Table(), row)
		if err != nil {
			return core.Store("insert salary", err)
		}
		created = rows[0]
		return nil
	})
	if err != nil {
		return core.Salary{}, fmt.Errorf("create salary: %w", err)
	}
	sal := toSalary(created)
	s.changed(ctx, core.ResourceSalaries, events.ActionCreate, sal.ID, actorID)
	return sal, nil
}

// Update recomputes net_salary from the merged components, so components
// missing from patch keep their stored values.
func (s *SalaryService) Update(ctx context.Context, id string, patch Input, actorID string) (core.Salary, error) {
	var updated storage.Row
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		current, err := s.get(ctx, tx, core.ResourceSalaries, "Salary", id)
		if err != nil {
			return err
		}
		merged := merge(current, patch)
		row, err := s.validate(merged)
		if err != nil {
			return err
		}
		if merged.String("employee_id") != current.String("employee_id") {
			if err := s.requireEmployee(ctx, tx, merged.String("employee_id")); err != nil {
				return err
			}
		}
		rows, err := tx.Update(ctx, core.ResourceSalaries.Table(), row, storage.Eq("id", id))
		if err != nil {
			return core.Store("update salary", err)
		}
		updated, err = first(rows, "Salary", id)
		return err
	})
	if err != nil {
		return core.Salary{}, fmt.Errorf("update salary: %w", err)
	}
	s.changed(ctx, core.ResourceSalaries, events.ActionUpdate, id, actorID)
	return toSalary(updated), nil
}

// MarkPaid sets the salary paid as of today.
func (s *SalaryService) MarkPaid(ctx context.Context, id, actorID string) (core.Salary, error) {
	rows, err := s.store.Update(ctx, core.ResourceSalaries.Table(), storage.Row{
		"status":    core.SalaryPaid,
		"paid_date": s.today(),
	}, storage.Eq("id", id))
	if err != nil {
		return core.Salary{}, core.Store("mark salary paid", err)
	}
	updated, err := first(rows, "Salary", id)
	if err != nil {
		return core.Salary{}, err
	}
	s.changed(ctx, core.ResourceSalaries, events.ActionUpdate, id, actorID)
	return toSalary(updated), nil
}

// Delete removes a salary.
func (s *SalaryService) Delete(ctx context.Context, id, actorID string) (string, error) {
	rows, err := s.store.Delete(ctx, core.ResourceSalaries.Table(), storage.Eq("id", id))
	if err != nil {
		return "", core.Store("delete salary", err)
	}
	if _, err := first(rows, "Salary", id); err != nil {
		return "", err
	}
	s.changed(ctx, core.ResourceSalaries, events.ActionDelete, id, actorID)
	return "Salary record deleted successfully", nil
}

// Stats totals payroll and counts paid and pending salaries.
func (s *SalaryService) Stats(ctx context.Context) (SalaryStats, error) {
	rows, err := s.store.Select(ctx, core.ResourceSalaries.Table(), storage.Query{
		Columns: []string{"net_salary", "status"},
	})
	if err != nil {
		return SalaryStats{}, core.Store("select salaries", err)
	}
	st := SalaryStats{TotalPayroll: decimal.Zero, Count: len(rows)}
	for _, r := range rows {
		st.TotalPayroll = st.TotalPayroll.Add(r.Decimal("net_salary"))
		switch r.String("status") {
		case core.SalaryPaid:
			st.PaidCount++
		case core.SalaryPending:
			st.PendingCount++
		}
	}
	return st, nil
}
