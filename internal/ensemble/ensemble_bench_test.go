package ensemble

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/expert"
)

func syntheticLists(experts, k int) [][]expert.ScoredResult {
	lists := make([][]expert.ScoredResult, experts)
	for e := range lists {
		list := make([]expert.ScoredResult, k)
		for r := range list {
			list[r] = expert.ScoredResult{DocID: int64((r*7 + e*13) % (k * 2)), Score: float64(k - r)}
		}
		lists[e] = list
	}
	return lists
}

func BenchmarkAggregate(b *testing.B) {
	for _, k := range []int{10, 100, 1000} {
		lists := syntheticLists(5, k)
		b.Run(fmt.Sprintf("k_%d", k), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = Aggregate(lists, k)
			}
		})
	}
}
