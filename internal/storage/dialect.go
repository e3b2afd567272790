package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Dialect captures what differs between the supported databases.
type Dialect interface {
	Name() string
	DriverName() string
	Placeholder(n int) string
	Timestamp(t time.Time) any
}

const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }
func (sqliteDialect) DriverName() string { return "sqlite" }
func (sqliteDialect) Placeholder(int) string { return "?" }

// Timestamp renders fixed-width UTC text so lexical order matches time order.
func (sqliteDialect) Timestamp(t time.Time) any { return t.UTC().Format(timestampLayout) }

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }
func (postgresDialect) DriverName() string { return "pgx" }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgresDialect) Timestamp(t time.Time) any { return t.UTC() }

var (
	SQLite   Dialect = sqliteDialect{}
	Postgres Dialect = postgresDialect{}
)

// DialectFor maps a configured driver name to its dialect.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", name)
}

// bindValue converts Go values into something both drivers accept.
func bindValue(d Dialect, v any) any {
	switch val := v.(type) {
	case time.Time:
		return d.Timestamp(val)
	case *time.Time:
		if val == nil {
			return nil
		}
		return d.Timestamp(*val)
	case *string:
		if val == nil {
			return nil
		}
		return *val
	case decimal.Decimal:
		return val.String()
	case []string:
		if val == nil {
			val = []string{}
		}
		b, _ := json.Marshal(val)
		return string(b)
	case fmt.Stringer:
		return val.String()
	}
	return v
}
