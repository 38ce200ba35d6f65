package transform

import "github.com/graphqlite/graphqlite/pkg/cypher/ast"

// Statement is one SQL text + positional parameter vector pair. CaptureAs, when non-empty, tells
// the executor to run this statement as a query (not a plain exec) expecting a single `id` column
// in its result (via a RETURNING clause) and to remember that value under the given alias for
// substitution into later Statements' Params entries of type Ref with the same Alias.
type Statement struct {
	SQL       string
	Params    []any
	CaptureAs string
}

// Ref is a placeholder parameter value standing for a node/edge id captured earlier in the same
// Prologue sequence by a Statement.CaptureAs, resolved by the executor at execution time rather
// than compile time (spec §4.3(6): a CREATE clause's own new nodes must be referenceable by its
// own new relationships without a second round trip).
type Ref struct {
	Alias string
}

// ResultKind tells the executor how to interpret a compiled Plan's output.
type ResultKind int

const (
	ResultRows      ResultKind = iota // a RETURN-bearing query: assemble rows into agtype
	ResultWriteOnly                   // a write-only query: report a create/update summary
	ResultAlgorithm                   // RETURN references pageRank/labelPropagation/degreeCentrality
)

// PlanStep is one post-process instruction the executor must carry out because it cannot be
// expressed as pure SQL (spec §4.3(5), §4.4).
type PlanStep interface{ planStep() }

// VarLengthStep filters a driving row for `(a)-[*min..max]->(b)` per spec §4.4: the raw SQL pairs
// every candidate start with every candidate end (the endpoint cannot be join-constrained to the
// relationship without knowing the path length), so the executor runs a BFS from the row's start
// id and keeps the row only if the row's end id is reachable at a depth in [MinHops,MaxHops].
// StartCol/EndCol index into the driving Statement's hidden tail columns (Plan.ExtraColumns),
// appended after the RETURN-visible ones, so the ids are available even when a or b isn't itself
// projected.
type VarLengthStep struct {
	StartAlias string // the driving row's bound start-node SQL alias
	EndAlias   string // the driving row's bound end-node SQL alias
	StartCol   int    // index into the row's hidden tail columns for the start id
	EndCol     int    // index into the row's hidden tail columns for the end id
	EndVar     string // the Cypher variable bound to the reached node, "" if anonymous
	RelVar     string // the Cypher variable bound to the path's relationship list, if any
	RelTypes   []string
	Direction  ast.Direction
	MinHops    int
	MaxHops    int // -1 means "use the engine's configured ceiling"
}

func (*VarLengthStep) planStep() {}

// ShortestPathStep drives a shortest-path BFS for `shortestPath((a)-[*..k]-(b))` (spec §4.4).
type ShortestPathStep struct {
	StartAlias string
	EndAlias   string
	StartCol   int
	EndCol     int
	RelTypes   []string
	Direction  ast.Direction
	MaxHops    int
	PathVar    string
}

func (*ShortestPathStep) planStep() {}

// PathMaterializeStep builds an agtype Path from a bound sequence of vertex/edge ids (spec §4.4).
type PathMaterializeStep struct {
	PathVar   string
	NodeVars  []string
	RelVars   []string
}

func (*PathMaterializeStep) planStep() {}

// MergeStep tells the executor to run a match-then-create pipeline: try the driving SELECT for
// Path; if it returns no rows, run the Create statements instead, then (on either branch) apply
// the matching OnMatch/OnCreate SET items (spec §4.3(6) MERGE).
type MergeStep struct {
	MatchQuery Statement
	OnMatch    []Statement
	CreateStmts []Statement
	OnCreate    []Statement
}

func (*MergeStep) planStep() {}

// AlgorithmStep dispatches a CSR-backed graph algorithm (spec §4.4, §4.6).
type AlgorithmStep struct {
	Name string // lower-cased from a RETURN call, as written in a CALL clause; dispatch ignores case
	Args []ast.Expr
}

func (*AlgorithmStep) planStep() {}

// WriteCounts summarizes a write-only query's effect, per spec §6's status string.
type WriteCounts struct {
	NodesCreated         int
	RelationshipsCreated int
}

// Plan is the full output of Compile: SQL to run, in what order, and what the executor must do
// with the rows (spec §4.3's "SQL text ... ordered parameter vector ... post-process plan").
type Plan struct {
	Prologue []Statement // writes that must complete before the driving query (clause order)
	Query    *Statement  // nil for a write-only query
	Columns  []string

	// ExtraColumns are SQL expressions appended to Query's SELECT list after the RETURN-visible
	// columns, one per alias a PlanStep needs but RETURN never projected. They ride along on
	// every row positionally (at index len(Columns)+i) and are never shown to the query caller.
	ExtraColumns []string

	ResultKind  ResultKind
	PostProcess []PlanStep
	Counts      WriteCounts
}
