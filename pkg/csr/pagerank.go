package csr

import "sort"

// PageRankResult is one node's steady-state score, keyed by its real nodes.id.
type PageRankResult struct {
	NodeID int64
	Score  float64
}

// PageRank runs power iteration over the snapshot's out-adjacency with uniform dangling-mass
// redistribution (spec §4.6: "dangling-node mass is redistributed uniformly across every node each
// iteration," a refinement the teacher's PageRank omits — see apoc/algo/algo.go).
//
// Example:
//
//	snap.PageRank(0.85, 20) => [{NodeID: 3, Score: 0.41}, ...]
func (s *Snapshot) PageRank(damping float64, iterations int) []PageRankResult {
	n := s.NodeCount()
	if n == 0 {
		return nil
	}
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0 / float64(n)
	}
	outDeg := make([]int64, n)
	var dangling []int
	for i := 0; i < n; i++ {
		outDeg[i] = s.RowPtr[i+1] - s.RowPtr[i]
		if outDeg[i] == 0 {
			dangling = append(dangling, i)
		}
	}

	// Reverse adjacency: for each node, which dense indices point at it. Built once, reused every
	// iteration, since the forward CSR arrays only walk out-edges.
	inLinks := make([][]int64, n)
	for src := 0; src < n; src++ {
		for _, dst := range s.outNeighbors(src) {
			inLinks[dst] = append(inLinks[dst], int64(src))
		}
	}

	base := (1 - damping) / float64(n)
	next := make([]float64, n)
	for iter := 0; iter < iterations; iter++ {
		var danglingMass float64
		for _, d := range dangling {
			danglingMass += scores[d]
		}
		danglingShare := damping * danglingMass / float64(n)

		for i := 0; i < n; i++ {
			var sum float64
			for _, src := range inLinks[i] {
				sum += scores[src] / float64(outDeg[src])
			}
			next[i] = base + damping*sum + danglingShare
		}
		scores, next = next, scores
	}

	results := make([]PageRankResult, n)
	for i := 0; i < n; i++ {
		results[i] = PageRankResult{NodeID: s.DenseToID[i], Score: scores[i]}
	}
	sortPageRankResults(results)
	return results
}

// sortPageRankResults orders by descending score, breaking exact ties by ascending node id so
// output is deterministic across repeated runs over the same snapshot (spec §8).
func sortPageRankResults(results []PageRankResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].NodeID < results[j].NodeID
	})
}
