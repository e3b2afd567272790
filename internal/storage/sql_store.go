package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	q       querier
	dialect Dialect
	inTx    bool
	now     func() time.Time
}

// Open connects to the database and applies migrations. For sqlite dsn is a
// file path or a file: URI.
func Open(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	if dialect.Name() == "sqlite" && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect.Name(), err)
	}
	if dialect.Name() == "sqlite" {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db, dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if dialect.Name() == "sqlite" {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	return New(db, dialect), nil
}

// New wraps an already opened database.
func New(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, q: db, dialect: dialect, now: time.Now}
}

// Dialect returns the SQL dialect the store was opened with.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// Close closes the underlying *sql.DB.
func (s *SQLStore) Close() error {
	if s.db != nil && !s.inTx {
		return s.db.Close()
	}
	return nil
}

// Select returns the rows of table matching q.
func (s *SQLStore) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	cols := "*"
	if len(q.Columns) > 0 {
		if err := checkIdent(q.Columns...); err != nil {
			return nil, fmt.Errorf("select %s: %w", table, err)
		}
		cols = strings.Join(q.Columns, ", ")
	}

	where, args, err := whereClause(s.dialect, q.Filters, 1)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	order, err := orderClause(q.Order)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}

	query := "SELECT " + cols + " FROM " + table + where + order
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		if q.Limit <= 0 && s.dialect.Name() == "sqlite" {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return rows, nil
}

// Get returns the row with the given id, or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, table, id string) (Row, error) {
	rows, err := s.Select(ctx, table, Query{Filters: []Filter{Eq("id", id)}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Insert writes rows and returns them as stored. Missing ids and timestamps are filled in.
func (s *SQLStore) Insert(ctx context.Context, table string, rows ...Row) ([]Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	out := make([]Row, 0, len(rows))
	for _, in := range rows {
		row := make(Row, len(in)+3)
		for k, v := range in {
			row[k] = v
		}
		if id, _ := row["id"].(string); id == "" {
			row["id"] = uuid.NewString()
		}
		now := s.now()
		if _, ok := row["created_at"]; !ok {
			row["created_at"] = now
		}
		if _, ok := row["updated_at"]; !ok {
			row["updated_at"] = now
		}

		cols := sortedKeys(row)
		if err := checkIdent(cols...); err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		ph := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, c := range cols {
			ph[i] = s.dialect.Placeholder(i + 1)
			args[i] = bindValue(s.dialect, row[c])
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			table, strings.Join(cols, ", "), strings.Join(ph, ", "))

		inserted, err := s.query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		out = append(out, inserted...)
	}
	return out, nil
}

// Update applies patch to every row matching filters and refreshes updated_at.
func (s *SQLStore) Update(ctx context.Context, table string, patch Row, filters ...Filter) ([]Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	set := make(Row, len(patch)+1)
	for k, v := range patch {
		if k == "id" || k == "created_at" {
			continue
		}
		set[k] = v
	}
	set["updated_at"] = s.now()

	cols := sortedKeys(set)
	if err := checkIdent(cols...); err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	assign := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(filters))
	for i, c := range cols {
		assign[i] = c + " = " + s.dialect.Placeholder(i+1)
		args = append(args, bindValue(s.dialect, set[c]))
	}
	where, wargs, err := whereClause(s.dialect, filters, len(cols)+1)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	args = append(args, wargs...)

	query := "UPDATE " + table + " SET " + strings.Join(assign, ", ") + where + " RETURNING *"
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	return rows, nil
}

// Delete removes the rows matching filters and returns them.
func (s *SQLStore) Delete(ctx context.Context, table string, filters ...Filter) ([]Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, fmt.Errorf("delete %s: %w", table, err)
	}
	where, args, err := whereClause(s.dialect, filters, 1)
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", table, err)
	}
	rows, err := s.query(ctx, "DELETE FROM "+table+where+" RETURNING *", args...)
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", table, err)
	}
	return rows, nil
}

// Count returns the number of rows matching filters.
func (s *SQLStore) Count(ctx context.Context, table string, filters ...Filter) (int, error) {
	if err := checkIdent(table); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	where, args, err := whereClause(s.dialect, filters, 1)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	rows, err := s.query(ctx, "SELECT COUNT(*) AS n FROM "+table+where, args...)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Int("n"), nil
}

// Adjust adds delta to column in a single UPDATE, so concurrent adjustments do not lose writes.
func (s *SQLStore) Adjust(ctx context.Context, table, column, id string, delta any) error {
	if err := checkIdent(table, column); err != nil {
		return fmt.Errorf("adjust %s.%s: %w", table, column, err)
	}
	query := fmt.Sprintf("UPDATE %s SET %s = %s + %s, updated_at = %s WHERE id = %s",
		table, column, column,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))

	res, err := s.q.ExecContext(ctx, query,
		bindValue(s.dialect, delta), s.dialect.Timestamp(s.now()), id)
	if err != nil {
		return fmt.Errorf("adjust %s.%s: %w", table, column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust %s.%s: %w", table, column, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InTx runs fn inside a transaction. The transaction is rolled back when fn returns an error.
func (s *SQLStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txStore := &SQLStore{db: s.db, q: tx, dialect: s.dialect, inTx: true, now: s.now}

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func sortedKeys(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
