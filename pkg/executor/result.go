package executor

import (
	"fmt"

	"github.com/graphqlite/graphqlite/pkg/agtype"
	"github.com/graphqlite/graphqlite/pkg/transform"
)

// Result is one query's full outcome: either row data (ResultKind rows/algorithm) or a write-only
// summary (spec §4.4, §6).
type Result struct {
	Kind    transform.ResultKind
	Columns []string
	Rows    [][]agtype.Value
	Counts  transform.WriteCounts

	// hidden carries Plan.ExtraColumns' scratch values per row, positionally aligned with Rows, for
	// PlanStep post-processing (VarLengthStep/ShortestPathStep reading start/end ids the RETURN
	// clause never projected). Never surfaced to a query caller.
	hidden [][]agtype.Value
}

// JSON renders the result the way spec §6 documents: an array of row objects keyed by column name
// for a row-bearing query, grounded on agtype.ToJSON's byte-stable scalar/vertex/edge formatting.
func (r *Result) JSON() ([]byte, error) {
	rows := make([]agtype.Value, len(r.Rows))
	for i, row := range r.Rows {
		props := make([]agtype.Property, len(r.Columns))
		for j, col := range r.Columns {
			props[j] = agtype.Property{Key: col, Value: row[j]}
		}
		rows[i] = agtype.NewObject(props)
	}
	return agtype.ToJSON(agtype.NewArray(rows))
}

// StatusString renders the write-only summary line spec §6 specifies verbatim:
// "Query executed successfully - nodes created: N, relationships created: M".
func (r *Result) StatusString() string {
	return fmt.Sprintf("Query executed successfully - nodes created: %d, relationships created: %d",
		r.Counts.NodesCreated, r.Counts.RelationshipsCreated)
}

// removeRows drops the rows at the given indices from both Rows and hidden, preserving relative
// order, for VarLengthStep/ShortestPathStep to discard rows the post-process BFS rejects.
func (r *Result) removeRows(reject map[int]bool) {
	if len(reject) == 0 {
		return
	}
	kept := make([][]agtype.Value, 0, len(r.Rows))
	keptHidden := make([][]agtype.Value, 0, len(r.hidden))
	for i, row := range r.Rows {
		if reject[i] {
			continue
		}
		kept = append(kept, row)
		if i < len(r.hidden) {
			keptHidden = append(keptHidden, r.hidden[i])
		}
	}
	r.Rows = kept
	r.hidden = keptHidden
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}
