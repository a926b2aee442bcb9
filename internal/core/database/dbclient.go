package db

import (
	"strconv"
	"strings"
	"time"
)

// dialect covers the few places Postgres and SQLite disagree.
type dialect string

const (
	dialectPostgres dialect = "postgres"
	dialectSqlite   dialect = "sqlite"
)

// rebind rewrites ? placeholders into $n for Postgres.
func (d dialect) rebind(q string) string {
	if d != dialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
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

func (d dialect) metaTableQuery() string {
	if d == dialectPostgres {
		return `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'ragdesk_meta'
		)`
	}
	return `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'ragdesk_meta')`
}

func (d dialect) serialPK() string {
	if d == dialectPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// timestamps are stored as unix nanoseconds in both dialects
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
