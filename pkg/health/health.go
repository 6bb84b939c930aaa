// Package health runs dependency probes for the searcher, indexer and
// analytics binaries: the loaded ranker, the corpus database, the snapshot
// store and the rank cache. Probes run in parallel and the worst status
// wins.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// severity orders statuses so the report can keep the worst.
func (s Status) severity() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency string         `json:"latency,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker holds named probes. Each probe gets its own deadline so one slow
// dependency cannot hide the state of the others.
type Checker struct {
	mu           sync.RWMutex
	checks       map[string]Check
	checkTimeout time.Duration
	logger       *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks:       make(map[string]Check),
		checkTimeout: 2 * time.Second,
		logger:       slog.Default().With("component", "health"),
	}
}

// Register adds or replaces the probe called name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run probes every registered dependency concurrently. A probe that panics
// is reported down.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	timeout := c.checkTimeout
	c.mu.RUnlock()

	type result struct {
		name string
		ch   ComponentHealth
	}
	results := make(chan result, len(checks))
	for name, check := range checks {
		go func() {
			results <- result{name: name, ch: c.probe(ctx, name, check, timeout)}
		}()
	}

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for range checks {
		r := <-results
		report.Components[r.name] = r.ch
		if r.ch.Status.severity() > report.Status.severity() {
			report.Status = r.ch.Status
		}
	}
	return report
}

func (c *Checker) probe(ctx context.Context, name string, check Check, timeout time.Duration) (res ComponentHealth) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("health check panicked", "check", name, "panic", p)
			res = ComponentHealth{Status: StatusDown, Message: fmt.Sprintf("check panicked: %v", p)}
		}
		res.Latency = time.Since(start).Round(time.Millisecond).String()
	}()
	return check(ctx)
}

// LiveHandler answers liveness probes; it never consults dependencies.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.write(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness probes with the full report. A degraded
// report is still ready; only a down component fails the probe.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		c.write(w, status, report)
	}
}

func (c *Checker) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.logger.Error("failed to write health response", "error", err)
	}
}

// PingCheck probes a dependency with ping. Required dependencies report
// down on failure, optional ones (the rank cache) degraded.
func PingCheck(ping func(ctx context.Context) error, required bool) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			status := StatusDegraded
			if required {
				status = StatusDown
			}
			return ComponentHealth{Status: status, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// WithDetails decorates a check's result with details() when it succeeds.
func WithDetails(check Check, details func() map[string]any) Check {
	return func(ctx context.Context) ComponentHealth {
		res := check(ctx)
		if res.Status == StatusUp {
			res.Details = details()
		}
		return res
	}
}

// ReadyCheck reports down until ready returns true.
func ReadyCheck(ready func() bool, message string) Check {
	return func(context.Context) ComponentHealth {
		if ready() {
			return ComponentHealth{Status: StatusUp, Message: message}
		}
		return ComponentHealth{Status: StatusDown, Message: "not loaded"}
	}
}
