// Package transform compiles an AST (pkg/cypher/ast) and a parameter map into SQL text with host
// placeholders, an ordered parameter vector, and a post-process plan for the parts that cannot be
// expressed as pure SQL (spec §4.3). This file implements the variable scope (spec §3.4): user
// names map to a generated SQL alias, an entity kind, and an "inherited" flag set once a clause
// following a scope-introducing clause is processed.
package transform

import "fmt"

// EntityKind distinguishes a bound variable's graph role.
type EntityKind int

const (
	KindNode EntityKind = iota
	KindEdge
	KindScalar // a WITH/UNWIND-bound plain value, not a graph entity
)

// ScopeEntry is what a bound variable resolves to within the current clause.
type ScopeEntry struct {
	Alias     string
	Kind      EntityKind
	Inherited bool
}

// Scope maps user-visible names to ScopeEntry for the clause currently being compiled. A fresh
// Scope is created per query (spec §3.4); WITH creates a new Scope seeded only from its own
// projection, discarding everything else that was visible upstream.
type Scope struct {
	entries  map[string]ScopeEntry
	aliasSeq map[string]int
}

// NewScope returns an empty scope for the start of a query.
func NewScope() *Scope {
	return &Scope{entries: make(map[string]ScopeEntry), aliasSeq: make(map[string]int)}
}

// Resolve looks up a previously bound variable.
func (s *Scope) Resolve(name string) (ScopeEntry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Bind assigns a fresh alias to name if unbound, and returns its (possibly pre-existing) entry.
// Re-binding an already-bound name within the same clause returns the existing alias unchanged,
// per spec §4.3(1): "References to an existing name in the same clause reuse the alias."
func (s *Scope) Bind(name string, kind EntityKind) ScopeEntry {
	if e, ok := s.entries[name]; ok {
		return e
	}
	return s.bindNew(name, kind)
}

func (s *Scope) bindNew(name string, kind EntityKind) ScopeEntry {
	prefix := "v"
	switch kind {
	case KindNode:
		prefix = "n"
	case KindEdge:
		prefix = "e"
	}
	n := s.aliasSeq[prefix]
	s.aliasSeq[prefix] = n + 1
	entry := ScopeEntry{Alias: fmt.Sprintf("%s_%d", prefix, n), Kind: kind}
	s.entries[name] = entry
	return entry
}

// BindAnonymous allocates a fresh alias for an unnamed pattern element (no Cypher variable), so it
// can still be referenced internally during SQL generation.
func (s *Scope) BindAnonymous(kind EntityKind) ScopeEntry {
	prefix := "anon"
	switch kind {
	case KindNode:
		prefix = "_n"
	case KindEdge:
		prefix = "_e"
	}
	n := s.aliasSeq[prefix]
	s.aliasSeq[prefix] = n + 1
	return ScopeEntry{Alias: fmt.Sprintf("%s_%d", prefix, n), Kind: kind}
}

// Fork returns a new Scope containing only the given (name -> entry) projection, each marked
// Inherited, modeling the WITH projection boundary of spec §3.4/§4.3(1).
func (s *Scope) Fork(projected map[string]ScopeEntry) *Scope {
	fresh := NewScope()
	for name, e := range projected {
		e.Inherited = true
		fresh.entries[name] = e
	}
	return fresh
}
