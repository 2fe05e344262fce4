package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect selects the SQL flavour and driver used by the store.
type Dialect string

const (
	// DialectSQLite stores data through modernc.org/sqlite.
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres stores data through github.com/jackc/pgx/v5/stdlib.
	DialectPostgres Dialect = "postgres"
)

// sqliteTimeLayout is fixed width so that stored timestamps compare correctly as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ParseDialect converts a configuration value into a Dialect.
func ParseDialect(value string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(value))) {
	case DialectSQLite:
		return DialectSQLite, nil
	case DialectPostgres, "postgresql", "pgx":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("sqlstore: unknown dialect %q", value)
}

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// Rebind rewrites ? placeholders into the dialect's positional form.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Time converts t into the argument stored in timestamp columns.
func (d Dialect) Time(t time.Time) any {
	if d == DialectPostgres {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTimeLayout)
}

// NullTime converts an optional timestamp argument.
func (d Dialect) NullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.Time(*t)
}

// timeColumn scans a timestamp column stored either as text (SQLite) or as a
// native timestamp (Postgres).
type timeColumn struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (c *timeColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		c.Time, c.Valid = time.Time{}, false
		return nil
	case time.Time:
		c.Time, c.Valid = v.UTC(), true
		return nil
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	}
	return fmt.Errorf("sqlstore: cannot scan %T into a timestamp", src)
}

func (c *timeColumn) parse(value string) error {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return fmt.Errorf("sqlstore: parse timestamp %q: %w", value, err)
	}
	c.Time, c.Valid = t.UTC(), true
	return nil
}

// Ptr returns nil for NULL columns.
func (c timeColumn) Ptr() *time.Time {
	if !c.Valid {
		return nil
	}
	t := c.Time
	return &t
}
