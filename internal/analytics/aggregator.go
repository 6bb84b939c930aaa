package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/kafka"
)

// latencyWindow bounds the samples kept for percentiles.
const latencyWindow = 10000

// AggregatedStats is a point-in-time summary of rank traffic.
type AggregatedStats struct {
	TotalRanks       int64        `json:"total_ranks"`
	Errors           int64        `json:"errors"`
	CacheHits        int64        `json:"cache_hits"`
	CacheMisses      int64        `json:"cache_misses"`
	EmptyResults     int64        `json:"empty_results"`
	AvgLatencyMs     float64      `json:"avg_latency_ms"`
	P50LatencyMs     int64        `json:"p50_latency_ms"`
	P95LatencyMs     int64        `json:"p95_latency_ms"`
	P99LatencyMs     int64        `json:"p99_latency_ms"`
	TopQueries       []QueryCount `json:"top_queries"`
	QueriesPerMinute float64      `json:"queries_per_minute"`
	CapturedAt       time.Time    `json:"captured_at"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	mu           sync.Mutex
	totalRanks   int64
	errors       int64
	cacheHits    int64
	cacheMisses  int64
	emptyResults int64
	latencies    []int64
	next         int
	queryCounts  map[string]int64
	startTime    time.Time
	now          func() time.Time
	logger       *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:   make([]int64, 0, latencyWindow),
		queryCounts: make(map[string]int64),
		startTime:   time.Now(),
		now:         time.Now,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes rank events for a Kafka consumer. Undecodable
// messages are skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(_ context.Context, _ []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RankEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode rank event", "error", err)
			return err
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(event RankEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalRanks++
	if event.Error != "" {
		a.errors++
		return
	}
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if event.Returned == 0 {
		a.emptyResults++
	}

	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
	a.queryCounts[event.Query]++
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalRanks:   a.totalRanks,
		Errors:       a.errors,
		CacheHits:    a.cacheHits,
		CacheMisses:  a.cacheMisses,
		EmptyResults: a.emptyResults,
		CapturedAt:   a.now().UTC(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	elapsed := a.now().Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalRanks) / elapsed
	}
	return stats
}

// Restore seeds the counters from a persisted snapshot, so totals survive
// a restart. Latency samples are not restored.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalRanks += s.TotalRanks
	a.errors += s.Errors
	a.cacheHits += s.CacheHits
	a.cacheMisses += s.CacheMisses
	a.emptyResults += s.EmptyResults
	for _, q := range s.TopQueries {
		a.queryCounts[q.Query] += q.Count
	}
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then query ascending.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
