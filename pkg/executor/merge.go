package executor

import (
	"context"
	"database/sql"

	"github.com/graphqlite/graphqlite/pkg/errs"
	"github.com/graphqlite/graphqlite/pkg/transform"
)

// applyMergeStep runs MERGE's match-then-create dispatch (spec §4.3(6)): probe MatchQuery; if it
// finds a row, run OnMatch against the matched id, otherwise run CreateStmts followed by OnCreate.
// Because MatchQuery is a single-column existence probe (pkg/transform/write.go's matchScopeSQL),
// only the pattern's driving alias has a real captured id on the MATCH branch; every other alias an
// OnMatch item references is bound to that same id too (spec §9 Open Question decisions) — a
// deliberate approximation inherited from the compiler's own single-column match probe, adequate for
// the single-node MERGE patterns spec.md's scenarios use.
func (e *Executor) applyMergeStep(ctx context.Context, s *transform.MergeStep, result *Result) error {
	var matchedID int64
	row := e.db.QueryRowContext(ctx, s.MatchQuery.SQL, s.MatchQuery.Params...)
	switch err := row.Scan(&matchedID); {
	case err == nil:
		captured := bindAllAliases(collectRefAliases(s.OnMatch), matchedID)
		for _, stmt := range s.OnMatch {
			if err := e.runStatement(ctx, e.db, stmt, captured); err != nil {
				return err
			}
		}
	case err == sql.ErrNoRows:
		captured := map[string]int64{}
		for _, stmt := range s.CreateStmts {
			if err := e.runStatement(ctx, e.db, stmt, captured); err != nil {
				return err
			}
		}
		for _, stmt := range s.OnCreate {
			if err := e.runStatement(ctx, e.db, stmt, captured); err != nil {
				return err
			}
		}
	default:
		return errs.Wrap(errs.Execute, err, "probe MERGE match query")
	}
	return nil
}

// collectRefAliases gathers every distinct transform.Ref alias a set of Statements' Params
// reference.
func collectRefAliases(stmts []transform.Statement) []string {
	seen := map[string]bool{}
	var aliases []string
	for _, stmt := range stmts {
		for _, p := range stmt.Params {
			if ref, ok := p.(transform.Ref); ok && !seen[ref.Alias] {
				seen[ref.Alias] = true
				aliases = append(aliases, ref.Alias)
			}
		}
	}
	return aliases
}

func bindAllAliases(aliases []string, id int64) map[string]int64 {
	captured := make(map[string]int64, len(aliases))
	for _, a := range aliases {
		captured[a] = id
	}
	return captured
}
