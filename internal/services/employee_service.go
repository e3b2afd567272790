package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"

	"accounting/internal/core"
	"accounting/internal/events"
	"accounting/internal/storage"
)

type EmployeeFilter struct {
	IsActive     *bool
	DepartmentID string
}

func (f EmployeeFilter) filters() []storage.Filter {
	var out []storage.Filter
	if f.IsActive != nil {
		out = append(out, storage.Eq("is_active", *f.IsActive))
	}
	if f.DepartmentID != "" {
		out = append(out, storage.Eq("department_id", f.DepartmentID))
	}
	return out
}

type EmployeeStats struct {
	Total           int             `json:"total"`
	Active          int             `json:"active"`
	TotalBaseSalary decimal.Decimal `json:"total_base_salary"`
}

// EmployeeService manages employees. Employees with salary history are
// deactivated instead of deleted.
type EmployeeService struct {
	base
}

// List returns employees matching f by first name.
func (s *EmployeeService) List(ctx context.Context, f EmployeeFilter) ([]core.Employee, error) {
	rows, err := s.store.Select(ctx, core.ResourceEmployees.Table(), storage.Query{
		Filters: f.filters(),
		Order:   []storage.Order{storage.Asc("first_name"), storage.Asc("last_name")},
	})
	if err != nil {
		return nil, core.Store("list employees", err)
	}
	return mapRows(rows, toEmployee), nil
}

// Get returns one employee.
func (s *EmployeeService) Get(ctx context.Context, id string) (core.Employee, error) {
	row, err := s.get(ctx, s.store, core.ResourceEmployees, "Employee", id)
	if err != nil {
		return core.Employee{}, err
	}
	return toEmployee(row), nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, ".")
}

func (s *EmployeeService) validate(in Input) (storage.Row, error) {
	if err := required(in, "first_name", "last_name", "email"); err != nil {
		return nil, err
	}
	email := strings.ToLower(in.String("email"))
	if !validEmail(email) {
		return nil, core.Invalid("email", "must be a valid email address")
	}
	baseSalary, err := in.Amount("base_salary", decimal.Zero)
	if err != nil {
		return nil, err
	}
	joinDate, err := in.OptionalDate("join_date")
	if err != nil {
		return nil, err
	}
	active, err := in.Bool("is_active", true)
	if err != nil {
		return nil, err
	}
	return storage.Row{
		"first_name":    in.String("first_name"),
		"last_name":     in.String("last_name"),
		"email":         email,
		"designation":   in.String("designation"),
		"department_id": in.String("department_id"),
		"base_salary":   baseSalary,
		"join_date":     joinDate,
		"is_active":     active,
	}, nil
}

func (s *EmployeeService) emailTaken(ctx context.Context, st storage.Store, email, exceptID string) error {
	filters := []storage.Filter{storage.Eq("email", email)}
	if exceptID != "" {
		filters = append(filters, storage.Neq("id", exceptID))
	}
	n, err := st.Count(ctx, core.ResourceEmployees.Table(), filters...)
	if err != nil {
		return core.Store("check employee email", err)
	}
	if n > 0 {
		return core.Conflict("Employee with this email already exists")
	}
	return nil
}

// Create stores an active employee. Emails are unique.
func (s *EmployeeService) Create(ctx context.Context, in Input, actorID string) (core.Employee, error) {
	in = merge(nil, in)
	in["is_active"] = true
	row, err := s.validate(in)
	if err != nil {
		return core.Employee{}, err
	}
	var created storage.Row
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		if err := s.emailTaken(ctx, tx, row["email"].(string), ""); err != nil {
			return err
		}
		rows, err := tx.Insert(ctx, core.ResourceEmployees.Table(), row)
		if err != nil {
			return core.Store("insert employee", err)
		}
		created = rows[0]
		return nil
	})
	if err != nil {
		return core.Employee{}, fmt.Errorf("create employee: %w", err)
	}
	e := toEmployee(created)
	s.changed(ctx, core.ResourceEmployees, events.ActionCreate, e.ID, actorID)
	return e, nil
}

// Update patches an employee.
func (s *EmployeeService) Update(ctx context.Context, id string, patch Input, actorID string) (core.Employee, error) {
	var updated storage.Row
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		current, err := s.get(ctx, tx, core.ResourceEmployees, "Employee", id)
		if err != nil {
			return err
		}
		row, err := s.validate(merge(current, patch))
		if err != nil {
			return err
		}
		if row["email"] != current.String("email") {
			if err := s.emailTaken(ctx, tx, row["email"].(string), id); err != nil {
				return err
			}
		}
		rows, err := tx.Update(ctx, core.ResourceEmployees.Table(), row, storage.Eq("id", id))
		if err != nil {
			return core.Store("update employee", err)
		}
		updated, err = first(rows, "Employee", id)
		return err
	})
	if err != nil {
		return core.Employee{}, fmt.Errorf("update employee: %w", err)
	}
	s.changed(ctx, core.ResourceEmployees, events.ActionUpdate, id, actorID)
	return toEmployee(updated), nil
}

// Delete deactivates an employee with salary history and removes one
// without. The returned message says which happened.
func (s *EmployeeService) Delete(ctx context.Context, id, actorID string) (string, error) {
	var (
		msg    string
		action string
	)
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		if _, err := s.get(ctx, tx, core.ResourceEmployees, "Employee", id); err != nil {
			return err
		}
		n, err := tx.Count(ctx, core.ResourceSalaries.Table(), storage.Eq("employee_id", id))
		if err != nil {
			return core.Store("count employee salaries", err)
		}
		if n > 0 {
			if _, err := tx.Update(ctx, core.ResourceEmployees.Table(), storage.Row{"is_active": false}, storage.Eq("id", id)); err != nil {
				return core.Store("deactivate employee", err)
			}
			msg, action = "Employee deactivated successfully", events.ActionUpdate
			return nil
		}
		if _, err := tx.Delete(ctx, core.ResourceEmployees.Table(), storage.Eq("id", id)); err != nil {
			return core.Store("delete employee", err)
		}
		msg, action = "Employee deleted successfully", events.ActionDelete
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("delete employee: %w", err)
	}
	s.changed(ctx, core.ResourceEmployees, action, id, actorID)
	return msg, nil
}

// Stats counts employees and sums base salaries.
func (s *EmployeeService) Stats(ctx context.Context) (EmployeeStats, error) {
	employees, err := s.List(ctx, EmployeeFilter{})
	if err != nil {
		return EmployeeStats{}, err
	}
	st := EmployeeStats{Total: len(employees), TotalBaseSalary: decimal.Zero}
	for _, e := range employees {
		if e.IsActive {
			st.Active++
			st.TotalBaseSalary = st.TotalBaseSalary.Add(e.BaseSalary)
		}
	}
	return st, nil
}
