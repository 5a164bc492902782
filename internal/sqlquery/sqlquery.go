// Package sqlquery builds the small set of parameterized statements the SQL
// repositories need from attribute maps. Identifiers are validated and quoted;
// values are always bound as arguments.
package sqlquery

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Placeholder selects the bind parameter syntax.
type Placeholder int

const (
	// Question renders "?" (SQLite, MySQL).
	Question Placeholder = iota
	// Dollar renders "$1", "$2", ... (PostgreSQL).
	Dollar
)

// ErrInvalidIdentifier is returned for table or column names outside
// [A-Za-z_][A-Za-z0-9_]*.
var ErrInvalidIdentifier = errors.New("sqlquery: invalid identifier")

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Ident validates name and returns it double-quoted.
func Ident(name string) (string, error) {
	if !identRE.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return `"` + name + `"`, nil
}

// Query is a statement with its bound arguments.
type Query struct {
	SQL  string
	Args []any
}

type builder struct {
	ph   Placeholder
	sb   strings.Builder
	args []any
	err  error
}

func (b *builder) write(s string) { b.sb.WriteString(s) }

func (b *builder) ident(name string) {
	if b.err != nil {
		return
	}
	q, err := Ident(name)
	if err != nil {
		b.err = err
		return
	}
	b.sb.WriteString(q)
}

func (b *builder) arg(v any) {
	b.args = append(b.args, v)
	if b.ph == Dollar {
		b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
		return
	}
	b.sb.WriteString("?")
}

// columns writes cols as a quoted list, or * when empty.
func (b *builder) columns(cols []string) {
	if len(cols) == 0 {
		b.write("*")
		return
	}
	for i, c := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.ident(c)
	}
}

// predicates writes "a = ? <sep> b = ?" with keys in sorted order.
func (b *builder) predicates(attrs map[string]any, sep string) {
	for i, k := range sortedKeys(attrs) {
		if i > 0 {
			b.write(sep)
		}
		b.ident(k)
		b.write(" = ")
		b.arg(attrs[k])
	}
}

func (b *builder) query() (Query, error) {
	if b.err != nil {
		return Query{}, b.err
	}
	return Query{SQL: b.sb.String(), Args: b.args}, nil
}

// Insert builds INSERT ... RETURNING "id".
func Insert(ph Placeholder, table string, fields map[string]any) (Query, error) {
	if len(fields) == 0 {
		return Query{}, errors.New("sqlquery: insert without fields")
	}

	b := &builder{ph: ph}
	keys := sortedKeys(fields)
	b.write("INSERT INTO ")
	b.ident(table)
	b.write(" (")
	b.columns(keys)
	b.write(") VALUES (")
	for i, k := range keys {
		if i > 0 {
			b.write(", ")
		}
		b.arg(fields[k])
	}
	b.write(`) RETURNING "id"`)
	return b.query()
}

// UpdateByID builds UPDATE ... WHERE "id" = id.
func UpdateByID(ph Placeholder, table string, id int64, fields map[string]any) (Query, error) {
	if len(fields) == 0 {
		return Query{}, errors.New("sqlquery: update without fields")
	}

	b := &builder{ph: ph}
	b.write("UPDATE ")
	b.ident(table)
	b.write(" SET ")
	b.predicates(fields, ", ")
	b.write(` WHERE "id" = `)
	b.arg(id)
	return b.query()
}

// SelectOne builds a single-row SELECT. anyOf entries are ORed inside one
// group, allOf entries are ANDed with it. Rows are ordered by id so the first
// match is stable.
func SelectOne(ph Placeholder, table string, columns []string, anyOf, allOf map[string]any) (Query, error) {
	b := &builder{ph: ph}
	b.write("SELECT ")
	b.columns(columns)
	b.write(" FROM ")
	b.ident(table)

	var clauses int
	if len(anyOf) > 0 {
		b.write(" WHERE (")
		b.predicates(anyOf, " OR ")
		b.write(")")
		clauses++
	}
	if len(allOf) > 0 {
		if clauses == 0 {
			b.write(" WHERE ")
		} else {
			b.write(" AND ")
		}
		b.predicates(allOf, " AND ")
	}
	b.write(` ORDER BY "id" LIMIT 1`)
	return b.query()
}

// Filter keeps the entries of fields whose key is in allowed.
func Filter(fields map[string]any, allowed []string) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if slices.Contains(allowed, k) {
			out[k] = v
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
