package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Placeholder styles for InsertSQL.
const (
	QuestionMark = iota // ?, ?, ?
	Dollar              // $1, $2, $3
)

// CreateTableSQL returns the CREATE TABLE IF NOT EXISTS statement for the
// token table, using countType for the count column.
func CreateTableSQL(countType string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	volume_id TEXT NOT NULL,
	token TEXT NOT NULL,
	part_of_speech TEXT NOT NULL,
	count %s NOT NULL
)`, Table, countType)
}

// DropTableSQL returns the statement that removes the token table.
func DropTableSQL() string {
	return "DROP TABLE IF EXISTS " + Table
}

// InsertSQL builds an INSERT of n rows into the token table.
func InsertSQL(n int, style int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(Table)
	b.WriteString(" (")
	b.WriteString(strings.Join(Columns, ", "))
	b.WriteString(") VALUES ")

	arg := 1
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			if style == Dollar {
				b.WriteByte('$')
				b.WriteString(strconv.Itoa(arg))
			} else {
				b.WriteByte('?')
			}
			arg++
		}
		b.WriteByte(')')
	}
	return b.String()
}
