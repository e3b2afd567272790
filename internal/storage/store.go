// Package storage is the record store adapter: table-scoped select, insert,
// update, delete and count over database/sql, plus atomic column adjustments
// and transactions. Identifiers are validated; values are always bound.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidOperator   = errors.New("invalid filter operator")
)

// Store is the generic record store used by every domain service.
type Store interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Get(ctx context.Context, table, id string) (Row, error)
	Insert(ctx context.Context, table string, rows ...Row) ([]Row, error)
	Update(ctx context.Context, table string, patch Row, filters ...Filter) ([]Row, error)
	Delete(ctx context.Context, table string, filters ...Filter) ([]Row, error)
	Count(ctx context.Context, table string, filters ...Filter) (int, error)
	// Adjust runs column = column + delta on the row with the given id in a
	// single statement.
	Adjust(ctx context.Context, table, column, id string, delta any) error
	// InTx runs fn against a store bound to one transaction. Nested calls
	// reuse the outer transaction.
	InTx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
	Close() error
}

type Op string

const (
	OpEq  Op = "="
	OpNeq Op = "<>"
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpIn  Op = "IN"
)

func (o Op) valid() bool {
	switch o {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpIn:
		return true
	}
	return false
}

// Filter is one AND-combined predicate.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq matches col = v.
func Eq(col string, v any) Filter { return Filter{Column: col, Op: OpEq, Value: v} }
// Neq matches col <> v.
func Neq(col string, v any) Filter { return Filter{Column: col, Op: OpNeq, Value: v} }
// Lt matches col < v.
func Lt(col string, v any) Filter { return Filter{Column: col, Op: OpLt, Value: v} }
// Lte matches col <= v.
func Lte(col string, v any) Filter { return Filter{Column: col, Op: OpLte, Value: v} }
// Gt matches col > v.
func Gt(col string, v any) Filter { return Filter{Column: col, Op: OpGt, Value: v} }
// Gte matches col >= v.
func Gte(col string, v any) Filter { return Filter{Column: col, Op: OpGte, Value: v} }

// In matches any of values. An empty list matches nothing.
func In[T any](col string, values ...T) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Filter{Column: col, Op: OpIn, Value: vs}
}

// Order sorts a Select by one column.
type Order struct {
	Column string
	Desc   bool
}

// Asc sorts col ascending.
func Asc(col string) Order { return Order{Column: col} }
// Desc sorts col descending.
func Desc(col string) Order { return Order{Column: col, Desc: true} }

// Query describes a Select. Zero Limit means no limit; empty Columns means *.
type Query struct {
	Columns []string
	Filters []Filter
	Order   []Order
	Limit   int
	Offset  int
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdent(names ...string) error {
	for _, n := range names {
		if !identRe.MatchString(n) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, n)
		}
	}
	return nil
}

// whereClause renders filters starting at placeholder index start. It returns
// the clause (with leading " WHERE " when non-empty) and the bound args.
func whereClause(d Dialect, filters []Filter, start int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	var (
		parts []string
		args  []any
		n     = start
	)
	for _, f := range filters {
		if err := checkIdent(f.Column); err != nil {
			return "", nil, err
		}
		op := f.Op
		if op == "" {
			op = OpEq
		}
		if !op.valid() {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidOperator, op)
		}
		if op == OpIn {
			vals, _ := f.Value.([]any)
			if len(vals) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			ph := make([]string, len(vals))
			for i, v := range vals {
				ph[i] = d.Placeholder(n)
				args = append(args, bindValue(d, v))
				n++
			}
			parts = append(parts, fmt.Sprintf("%s IN (%s)", f.Column, strings.Join(ph, ", ")))
			continue
		}
		if f.Value == nil {
			switch op {
			case OpEq:
				parts = append(parts, f.Column+" IS NULL")
				continue
			case OpNeq:
				parts = append(parts, f.Column+" IS NOT NULL")
				continue
			}
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", f.Column, op, d.Placeholder(n)))
		args = append(args, bindValue(d, f.Value))
		n++
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func orderClause(orders []Order) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	parts := make([]string, len(orders))
	for i, o := range orders {
		if err := checkIdent(o.Column); err != nil {
			return "", err
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts[i] = o.Column + " " + dir
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}
