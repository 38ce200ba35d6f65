// Package executor drives a compiled transform.Plan against the host row store (spec §4.4): it
// runs prologue writes, issues the driving SELECT, applies the plan's post-process steps per row,
// and assembles the result into agtype values. Grounded on the teacher's pkg/cypher/executor.go
// (Execute's overall parse-compile-run shape) and pkg/cypher/cache.go (the per-connection result
// cache, simplified per SPEC_FULL.md's documented "invalidate on any write" design).
package executor

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/graphqlite/graphqlite/pkg/config"
	"github.com/graphqlite/graphqlite/pkg/csr"
	"github.com/graphqlite/graphqlite/pkg/cypher/ast"
	"github.com/graphqlite/graphqlite/pkg/cypher/parser"
	"github.com/graphqlite/graphqlite/pkg/errs"
	"github.com/graphqlite/graphqlite/pkg/transform"

	"github.com/sirupsen/logrus"
)

// dbHandle is the narrow slice of *sql.DB/*sql.Conn/*sql.Tx an Executor needs, mirroring
// pkg/schema.InternKey's duck-typed exec parameter so the same Executor works whether it owns a
// whole database or one connection out of a pool (spec §5: "one executor per host connection").
type dbHandle interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor owns one connection's query-result cache and CSR snapshot. Nothing here is shared
// across Executors: spec §5 forbids shared mutable state between concurrently executing queries on
// different connections, so the cache and snapshot are invalidated locally, never broadcast.
type Executor struct {
	db           dbHandle
	cfg          config.Config
	schemaPrefix string
	log          *logrus.Entry

	mu   sync.Mutex
	snap *csr.Snapshot // lazily loaded, invalidated on any write
	qc   *queryCache
}

// New builds an Executor bound to db (normally one *sql.Conn checked out for a host connection's
// lifetime; *sql.DB also satisfies dbHandle for single-connection embeddings). schemaPrefix selects
// the default graph ("") or an attached graph ("name.").
func New(db dbHandle, cfg config.Config, schemaPrefix string) *Executor {
	return &Executor{
		db:           db,
		cfg:          cfg,
		schemaPrefix: schemaPrefix,
		log:          logrus.WithField("component", "executor"),
		qc:           newQueryCache(cfg.QueryCacheSize),
	}
}

// Close releases the executor's cached CSR snapshot and result cache. Call this from the host
// connection's close hook (spec §5's per-connection cache lifecycle).
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap = nil
	e.qc = nil
}

// Execute parses, compiles, and runs a Cypher query end to end (spec §4.4's executor state
// machine). Missing parameters the query references are a fatal Transform error; params the query
// never references are silently ignored (spec §4.4).
func (e *Executor) Execute(ctx context.Context, cypher string, params map[string]any) (*Result, error) {
	if cached, ok := e.qc.get(cypher, params); ok {
		return cached, nil
	}

	query, err := parser.Parse(cypher)
	if err != nil {
		return nil, err
	}
	plan, err := transform.Compile(query, params, e.schemaPrefix, e.cfg.MaxVarLengthHops)
	if err != nil {
		return nil, err
	}

	captured := map[string]int64{}
	for _, stmt := range plan.Prologue {
		if err := e.runStatement(ctx, e.db, stmt, captured); err != nil {
			return nil, err
		}
	}

	var result *Result
	switch {
	case plan.Query == nil:
		result = &Result{Kind: transform.ResultWriteOnly, Counts: plan.Counts}
	default:
		result, err = e.runDrivingQuery(ctx, plan)
		if err != nil {
			return nil, err
		}
		result.Counts = plan.Counts
	}

	for _, step := range plan.PostProcess {
		if err := e.applyPostProcess(ctx, step, result, params); err != nil {
			return nil, err
		}
	}

	isWrite := len(plan.Prologue) > 0 || hasMergeStep(plan.PostProcess)
	if isWrite {
		e.invalidateOnWrite()
	} else {
		e.qc.put(cypher, params, result)
	}
	return result, nil
}

func hasMergeStep(steps []transform.PlanStep) bool {
	for _, s := range steps {
		if _, ok := s.(*transform.MergeStep); ok {
			return true
		}
	}
	return false
}

// invalidateOnWrite drops both caches the moment any write is observed, per SPEC_FULL.md §4.4's
// simplification versus the teacher's label-aware SmartQueryCache: whole-cache invalidation, not
// selective.
func (e *Executor) invalidateOnWrite() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap = nil
	e.qc.invalidate()
}

// snapshot returns the cached CSR snapshot, loading it from the current row store if none is
// cached (spec §4.6).
func (e *Executor) snapshot(ctx context.Context) (*csr.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap != nil {
		return e.snap, nil
	}
	snap, err := csr.Load(ctx, e.db, e.schemaPrefix)
	if err != nil {
		return nil, err
	}
	e.snap = snap
	return snap, nil
}

// runStatement executes one Prologue or write-branch Statement, resolving any Ref parameters
// against ids already captured earlier in the same sequence, and recording its own CaptureAs result
// (spec §4.3(6)).
func (e *Executor) runStatement(ctx context.Context, db dbHandle, stmt transform.Statement, captured map[string]int64) error {
	args, err := resolveParams(stmt.Params, captured)
	if err != nil {
		return err
	}
	if stmt.CaptureAs != "" {
		row := db.QueryRowContext(ctx, stmt.SQL, args...)
		var id int64
		if err := row.Scan(&id); err != nil {
			return errs.Wrap(errs.Execute, err, "capture %q", stmt.CaptureAs)
		}
		captured[stmt.CaptureAs] = id
		return nil
	}
	if _, err := db.ExecContext(ctx, stmt.SQL, args...); err != nil {
		return errs.Wrap(errs.Execute, err, "exec statement")
	}
	return nil
}

// resolveParams substitutes every transform.Ref in params with its captured id, per clause-order
// threading (spec §4.3(6)).
func resolveParams(params []any, captured map[string]int64) ([]any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make([]any, len(params))
	for i, p := range params {
		ref, ok := p.(transform.Ref)
		if !ok {
			out[i] = p
			continue
		}
		id, ok := captured[ref.Alias]
		if !ok {
			return nil, errs.New(errs.Execute, "no captured id for alias %q", ref.Alias)
		}
		out[i] = id
	}
	return out, nil
}

// evalArgExpr evaluates an AlgorithmStep argument, which is only ever a literal or a query
// parameter — algorithm calls take configuration scalars, never bound graph variables (spec §4.6).
func evalArgExpr(e ast.Expr, params map[string]any) (any, error) {
	switch v := e.(type) {
	case *ast.Literal:
		switch v.Kind {
		case ast.LitInteger:
			return v.Int, nil
		case ast.LitFloat:
			return v.Flt, nil
		case ast.LitString:
			return v.Str, nil
		case ast.LitBool:
			return v.Bool, nil
		default:
			return nil, errs.New(errs.Execute, "algorithm argument cannot be null")
		}
	case *ast.Parameter:
		val, ok := params[v.Name]
		if !ok {
			return nil, errs.New(errs.Execute, "undeclared parameter $%s", v.Name)
		}
		return val, nil
	default:
		return nil, errs.New(errs.Execute, "algorithm arguments must be literals or parameters")
	}
}

func algorithmName(raw string) string {
	return strings.ToLower(raw)
}
