package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect carries the few SQL differences between sqlite and postgres.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2, ...) instead of ?.
	Numbered bool
	// ForUpdate is appended to the row read inside UpdateMessage.
	ForUpdate string
	// LockRow is appended to single-table row reads that must hold the row.
	LockRow string
}

var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{Name: "postgres", Numbered: true, ForUpdate: " FOR UPDATE OF m", LockRow: " FOR UPDATE"}
)

func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
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
