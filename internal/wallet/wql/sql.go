package wql

import (
	"fmt"
	"strings"

	"agentwallet/internal/wallet"
)

// Placeholder renders the n-th (1-based) bind parameter for a SQL dialect.
type Placeholder func(n int) string

// QuestionMark is the SQLite placeholder style.
func QuestionMark(int) string { return "?" }

// Dollar is the PostgreSQL placeholder style.
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// SQLBuilder compiles expressions into a WHERE clause over an items table
// joined to a (item_id, name, value) tags table.
type SQLBuilder struct {
	ItemIDColumn string
	TagsTable    string
	Placeholder  Placeholder

	args []any
}

// Args returns the bind parameters accumulated so far.
func (b *SQLBuilder) Args() []any {
	return b.args
}

// Bind appends a parameter and returns its placeholder.
func (b *SQLBuilder) Bind(v any) string {
	b.args = append(b.args, v)
	return b.Placeholder(len(b.args))
}

// Where renders e as a boolean SQL expression.
func (b *SQLBuilder) Where(e Expr) string {
	switch n := e.(type) {
	case Cmp:
		return b.cmp(n)
	case And:
		return b.join(n.Exprs, " AND ", "(1=1)")
	case Or:
		return b.join(n.Exprs, " OR ", "(1=0)")
	case Not:
		return "NOT (" + b.Where(n.Expr) + ")"
	}
	return "(1=0)"
}

func (b *SQLBuilder) join(exprs []Expr, sep, empty string) string {
	if len(exprs) == 0 {
		return empty
	}
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		parts = append(parts, b.Where(e))
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (b *SQLBuilder) cmp(c Cmp) string {
	var cond string
	name := b.Bind(c.Tag)
	switch c.Op {
	case OpIn:
		if len(c.Values) == 0 {
			return "(1=0)"
		}
		phs := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			phs = append(phs, b.Bind(v))
		}
		cond = "value IN (" + strings.Join(phs, ", ") + ")"
	default:
		cond = "value " + sqlOperator(c.Op) + " " + b.Bind(c.Value)
	}
	return fmt.Sprintf("%s IN (SELECT item_id FROM %s WHERE name = %s AND %s)",
		b.ItemIDColumn, b.TagsTable, name, cond)
}

func sqlOperator(op Op) string {
	switch op {
	case OpNeq:
		return "<>"
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpLike:
		return "LIKE"
	default:
		return "="
	}
}

// OrderBy renders an ORDER BY clause for tag sort fields. Items missing a
// sort tag come last; nameColumn breaks ties.
func (b *SQLBuilder) OrderBy(fields []wallet.SortField, nameColumn string) string {
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("(SELECT s.value FROM %s s WHERE s.item_id = %s AND s.name = %s) %s NULLS LAST",
			b.TagsTable, b.ItemIDColumn, b.Bind(f.Tag), dir))
	}
	parts = append(parts, nameColumn+" ASC")
	return "ORDER BY " + strings.Join(parts, ", ")
}
