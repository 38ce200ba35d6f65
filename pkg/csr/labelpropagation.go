package csr

import "sort"

// LabelPropagationResult assigns a node to the community (itself identified by a representative
// node id) it converged to.
type LabelPropagationResult struct {
	NodeID      int64
	CommunityID int64
}

// LabelPropagation runs asynchronous label propagation over the snapshot's undirected adjacency
// (an edge in either direction counts as a neighbor, matching the teacher's Community in
// apoc/algo/algo.go). Each node starts in its own community, then each round visits the nodes in
// ascending dense order and every node adopts the most frequent community among its neighbors,
// updating in place so later nodes in the same round see the new assignment; a round with no
// change ends the loop early. A frequency tie is broken by the smallest node id
// contributing to that community (spec §4.6 — the teacher's Community instead breaks ties by map
// iteration order, which this package deliberately does not reproduce).
//
// Example:
//
//	snap.LabelPropagation(20) => [{NodeID: 1, CommunityID: 1}, {NodeID: 2, CommunityID: 1}, ...]
func (s *Snapshot) LabelPropagation(maxIterations int) []LabelPropagationResult {
	n := s.NodeCount()
	if n == 0 {
		return nil
	}

	undirected := make([][]int64, n)
	seen := make([]map[int64]bool, n)
	for i := range seen {
		seen[i] = make(map[int64]bool)
	}
	addEdge := func(a, b int64) {
		if !seen[a][b] {
			seen[a][b] = true
			undirected[a] = append(undirected[a], b)
		}
	}
	for src := 0; src < n; src++ {
		for _, dst := range s.outNeighbors(src) {
			addEdge(int64(src), dst)
			addEdge(dst, int64(src))
		}
	}
	for i := 0; i < n; i++ {
		sortInt64s(undirected[i])
	}

	community := make([]int64, n)
	for i := range community {
		community[i] = int64(i)
	}

	order := make([]int64, n)
	for i := range order {
		order[i] = int64(i)
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for _, dense := range order {
			neighbors := undirected[dense]
			if len(neighbors) == 0 {
				continue
			}
			best := pickMajorityCommunity(neighbors, community)
			if best != community[dense] {
				community[dense] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	results := make([]LabelPropagationResult, n)
	for i := 0; i < n; i++ {
		results[i] = LabelPropagationResult{NodeID: s.DenseToID[i], CommunityID: s.DenseToID[community[i]]}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].NodeID < results[j].NodeID })
	return results
}

// pickMajorityCommunity returns the community held by the most neighbors, breaking ties by the
// smallest dense neighbor id that contributed to the winning community.
func pickMajorityCommunity(neighbors []int64, community []int64) int64 {
	counts := make(map[int64]int)
	firstNeighbor := make(map[int64]int64)
	for _, nb := range neighbors {
		c := community[nb]
		counts[c]++
		if _, ok := firstNeighbor[c]; !ok {
			firstNeighbor[c] = nb
		}
	}

	var best int64
	bestCount := -1
	bestTieBreak := int64(-1)
	for c, count := range counts {
		tieBreak := firstNeighbor[c]
		switch {
		case count > bestCount:
			best, bestCount, bestTieBreak = c, count, tieBreak
		case count == bestCount && (bestTieBreak == -1 || tieBreak < bestTieBreak):
			best, bestTieBreak = c, tieBreak
		}
	}
	return best
}

func sortInt64s(xs []int64) {
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
}
