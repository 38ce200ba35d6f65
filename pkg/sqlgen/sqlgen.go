// Package sqlgen is a small SQL text and parameter-vector builder: verbatim SQL text, placeholders,
// and IN-list expansion. It never interpolates values as literals — every value flows through the
// parameter vector, per the spec's "never interpolated as SQL literals" rule. No other package in
// this module imports it; pkg/transform assembles its SQL text with fmt and strings directly.
package sqlgen

import "strings"

// Builder accumulates SQL text and a parallel ordered parameter vector.
type Builder struct {
	sb     strings.Builder
	params []any
}

// New returns an empty Builder.
func New() *Builder { return &Builder{} }

// Write appends literal SQL text verbatim (keywords, identifiers, punctuation — never user data).
func (b *Builder) Write(sql string) *Builder {
	b.sb.WriteString(sql)
	return b
}

// Param appends a single host placeholder ("?") and records its bound value in parameter order.
func (b *Builder) Param(value any) *Builder {
	b.sb.WriteString("?")
	b.params = append(b.params, value)
	return b
}

// InList appends a parenthesized, comma-separated list of placeholders, one per value — the
// constant-list lowering of `IN (...)` from spec §4.3(4).
func (b *Builder) InList(values []any) *Builder {
	b.sb.WriteString("(")
	for i, v := range values {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Param(v)
	}
	b.sb.WriteString(")")
	return b
}

// SQL returns the accumulated SQL text.
func (b *Builder) SQL() string { return b.sb.String() }

// Params returns the accumulated parameter vector, in placeholder order.
func (b *Builder) Params() []any { return b.params }

// QuoteIdent wraps a host identifier (table/column/schema name) in double quotes, escaping any
// embedded quote. Identifiers in this codebase are always engine-generated aliases or schema
// table names, never raw user text, so this exists for readability at call sites, not injection
// defense.
func QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
