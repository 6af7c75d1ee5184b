// Package query composes parameterized SQL WHERE clauses for pgx.
//
// Caller values never reach the SQL text: every value goes through
// Builder.Bind, which appends it to the argument list and returns its
// positional placeholder ($1, $2, ...).
package query

import (
	"strconv"
	"strings"
)

// Param is a positional placeholder returned by Builder.Bind.
// Passing a Param to Expr reuses the bound value instead of binding it again.
type Param string

// Builder accumulates bound arguments in placeholder order.
type Builder struct {
	args []any
}

// New starts an empty builder.
func New() *Builder {
	return &Builder{}
}

// Bind appends v to the argument list and returns its placeholder.
func (b *Builder) Bind(v any) Param {
	b.args = append(b.args, v)
	return Param("$" + strconv.Itoa(len(b.args)))
}

// Args returns the bound arguments in placeholder order.
func (b *Builder) Args() []any {
	return b.args
}

// Where renders p as a WHERE clause. A nil or empty predicate renders "".
func (b *Builder) Where(p Predicate) string {
	if p == nil {
		return ""
	}
	sql := p.SQL(b)
	if sql == "" {
		return ""
	}
	return "WHERE " + sql
}

// Predicate renders a boolean SQL expression, binding its values on b.
type Predicate interface {
	SQL(b *Builder) string
}

type predicateFunc func(b *Builder) string

func (f predicateFunc) SQL(b *Builder) string { return f(b) }

func compare(col, op string, v any) Predicate {
	return predicateFunc(func(b *Builder) string {
		return col + " " + op + " " + string(bindOrReuse(b, v))
	})
}

// Eq renders col = value.
func Eq(col string, v any) Predicate { return compare(col, "=", v) }

// Gte renders col >= value.
func Gte(col string, v any) Predicate { return compare(col, ">=", v) }

// Lte renders col <= value.
func Lte(col string, v any) Predicate { return compare(col, "<=", v) }

// Gt renders col > value.
func Gt(col string, v any) Predicate { return compare(col, ">", v) }

// NotNull renders col IS NOT NULL.
func NotNull(col string) Predicate {
	return predicateFunc(func(*Builder) string {
		return col + " IS NOT NULL"
	})
}

// ILike renders a case-insensitive pattern match. The pattern is bound as is.
func ILike(col string, pattern any) Predicate { return compare(col, "ILIKE", pattern) }

// Expr renders a raw SQL fragment where each "?" is replaced by the
// placeholder of the matching argument. The number of "?" must equal len(args).
func Expr(format string, args ...any) Predicate {
	return predicateFunc(func(b *Builder) string {
		return Format(b, format, args...)
	})
}

// Format substitutes "?" markers in format with placeholders bound on b.
// It panics when the marker count and len(args) differ: that is a programming error.
func Format(b *Builder, format string, args ...any) string {
	parts := strings.Split(format, "?")
	if len(parts)-1 != len(args) {
		panic("query: Expr marker count does not match argument count in " + strconv.Quote(format))
	}
	var sb strings.Builder
	sb.WriteString(parts[0])
	for i, a := range args {
		sb.WriteString(string(bindOrReuse(b, a)))
		sb.WriteString(parts[i+1])
	}
	return sb.String()
}

// And joins predicates with AND, skipping nil and empty ones.
func And(ps ...Predicate) Predicate {
	return predicateFunc(func(b *Builder) string {
		return join(b, " AND ", ps)
	})
}

// Or joins predicates with OR inside parentheses, skipping nil and empty ones.
func Or(ps ...Predicate) Predicate {
	return predicateFunc(func(b *Builder) string {
		s := join(b, " OR ", ps)
		if s == "" {
			return ""
		}
		return "(" + s + ")"
	})
}

func join(b *Builder, sep string, ps []Predicate) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		if p == nil {
			continue
		}
		if s := p.SQL(b); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

func bindOrReuse(b *Builder, v any) Param {
	if p, ok := v.(Param); ok {
		return p
	}
	return b.Bind(v)
}

// EscapeLike escapes LIKE metacharacters so s matches literally.
// The result is meant for the default backslash escape character.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Contains returns an ILIKE pattern matching s as a literal substring.
func Contains(s string) string {
	return "%" + EscapeLike(s) + "%"
}
