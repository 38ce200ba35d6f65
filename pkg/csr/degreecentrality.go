package csr

import "sort"

// DegreeCentralityResult reports one node's in/out/total degree.
type DegreeCentralityResult struct {
	NodeID    int64
	InDegree  int64
	OutDegree int64
	Degree    int64
}

// DegreeCentrality counts each node's in- and out-degree from the CSR adjacency. A self-loop
// (source_id == target_id) contributes to both counts, matching an ordinary directed edge scan
// rather than the special-cased skip some graph libraries apply (spec §4.6). Adapted from the
// teacher's DegreeCentrality in apoc/algo/algo.go, generalized from an in-memory node slice to the
// dense CSR arrays.
//
// Example:
//
//	snap.DegreeCentrality() => [{NodeID: 1, InDegree: 2, OutDegree: 1, Degree: 3}, ...]
func (s *Snapshot) DegreeCentrality() []DegreeCentralityResult {
	n := s.NodeCount()
	if n == 0 {
		return nil
	}
	inDeg := make([]int64, n)
	outDeg := make([]int64, n)
	for src := 0; src < n; src++ {
		neighbors := s.outNeighbors(src)
		outDeg[src] = int64(len(neighbors))
		for _, dst := range neighbors {
			inDeg[dst]++
		}
	}

	results := make([]DegreeCentralityResult, n)
	for i := 0; i < n; i++ {
		results[i] = DegreeCentralityResult{
			NodeID:    s.DenseToID[i],
			InDegree:  inDeg[i],
			OutDegree: outDeg[i],
			Degree:    inDeg[i] + outDeg[i],
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Degree != results[j].Degree {
			return results[i].Degree > results[j].Degree
		}
		return results[i].NodeID < results[j].NodeID
	})
	return results
}
