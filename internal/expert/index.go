package expert

import (
	"container/heap"
	"context"
	"sort"
)

// ScoredResult is one candidate returned by an expert.
type ScoredResult struct {
	DocID int64   `json:"doc_id"`
	Score float64 `json:"score"`
}

// Index is a brute-force cosine similarity index over unit-length document
// vectors. It is read-only once built.
type Index struct {
	DocIDs  []int64  `json:"doc_ids"`
	Vectors []Vector `json:"vectors"`
}

func (ix *Index) Len() int { return len(ix.DocIDs) }

const cancelCheckEvery = 1024

// search scores query against every document and keeps the best limit
// results (all of them when limit is zero), sorted by descending score then
// ascending doc id.
func (ix *Index) search(ctx context.Context, query Vector, limit int) ([]ScoredResult, error) {
	if limit <= 0 || limit > ix.Len() {
		limit = ix.Len()
	}
	h := make(resultHeap, 0, limit+1)
	for i, vec := range ix.Vectors {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		r := ScoredResult{DocID: ix.DocIDs[i], Score: dot(query, vec)}
		if h.Len() < limit {
			heap.Push(&h, r)
			continue
		}
		if limit > 0 && better(r, h[0]) {
			h[0] = r
			heap.Fix(&h, 0)
		}
	}
	out := []ScoredResult(h)
	sortResults(out)
	return out, nil
}

func better(a, b ScoredResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

func sortResults(rs []ScoredResult) {
	sort.Slice(rs, func(i, j int) bool { return better(rs[i], rs[j]) })
}

// resultHeap is a min-heap whose root is the worst retained result.
type resultHeap []ScoredResult

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) {
	*h = append(*h, x.(ScoredResult))
}

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
