// Package analytics collects rank query events from searchers over Kafka
// and aggregates them into latency, cache and query-popularity statistics.
package analytics

import "time"

// RankEvent describes one served rank request.
type RankEvent struct {
	Query     string    `json:"query"`
	N         int       `json:"n"`
	Returned  int       `json:"returned"`
	Experts   []string  `json:"experts"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}
