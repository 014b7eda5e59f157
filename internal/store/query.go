package store

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect captures the SQL differences between SQLite and Postgres.
type dialect struct {
	placeholder func(n int) string
	noLimit     string // LIMIT value meaning "all rows", required by SQLite before OFFSET
}

var (
	sqliteDialect = dialect{
		placeholder: func(int) string { return "?" },
		noLimit:     "-1",
	}
	postgresDialect = dialect{
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		noLimit:     "ALL",
	}
)

// listQuery builds the SELECT for ListInstallations.
func (d dialect) listQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, d.placeholder(len(args))))
	}

	if state := strings.ToUpper(strings.TrimSpace(f.State)); state != "" {
		add("state = %s", state)
	}
	if f.Year != 0 {
		add("year = %s", f.Year)
	}
	if f.MinCapacity > 0 {
		add("capacity_ac >= %s", f.MinCapacity)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(installationColumns, ", "))
	b.WriteString(" FROM installations")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY case_id")

	switch {
	case f.Limit > 0:
		args = append(args, f.Limit)
		b.WriteString(" LIMIT " + d.placeholder(len(args)))
	case f.Offset > 0:
		b.WriteString(" LIMIT " + d.noLimit)
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		b.WriteString(" OFFSET " + d.placeholder(len(args)))
	}

	return b.String(), args
}

// insertQuery builds a multi-row INSERT for n installations.
func (d dialect) insertQuery(n int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO installations (")
	b.WriteString(strings.Join(installationColumns, ", "))
	b.WriteString(") VALUES ")

	p := 0
	for i := range n {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range installationColumns {
			if j > 0 {
				b.WriteString(", ")
			}
			p++
			b.WriteString(d.placeholder(p))
		}
		b.WriteByte(')')
	}
	return b.String()
}
