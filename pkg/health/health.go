// Package health reports whether the service's dependencies are reachable.
// A degraded dependency (an optional one such as the query cache) keeps the
// service ready; a down one does not.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the health of one dependency or of the service as a whole.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// severity orders statuses so the worst one wins.
func (s Status) severity() int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	}
	return 0
}

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth is the outcome of one check.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the outcome of all checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker runs registered checks concurrently and remembers the last status
// of each dependency so that changes are logged once.
type Checker struct {
	mu     sync.Mutex
	checks map[string]Check
	last   map[string]Status
	logger *slog.Logger
}

// NewChecker creates an empty Checker.
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]Check),
		last:   make(map[string]Status),
		logger: slog.Default().With("component", "health"),
	}
}

// Register adds or replaces a named check.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes every check and aggregates the worst status.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.Lock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.Unlock()

	results := make(map[string]ComponentHealth, len(checks))
	var mu sync.Mutex
	var g errgroup.Group
	for name, check := range checks {
		g.Go(func() error {
			start := time.Now()
			res := check(ctx)
			res.Latency = time.Since(start).Round(time.Millisecond).String()
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:     StatusUp,
		Components: results,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for _, res := range results {
		if res.Status.severity() > report.Status.severity() {
			report.Status = res.Status
		}
	}
	c.logTransitions(results)
	return report
}

func (c *Checker) logTransitions(results map[string]ComponentHealth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, res := range results {
		prev, seen := c.last[name]
		c.last[name] = res.Status
		if prev == res.Status || (!seen && res.Status == StatusUp) {
			continue
		}
		if res.Status == StatusUp {
			c.logger.Info("dependency recovered", "dependency", name)
			continue
		}
		c.logger.Warn("dependency unhealthy", "dependency", name, "status", res.Status, "message", res.Message)
	}
}

// Pinger is any dependency with a ping round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Required reports a dependency as down when its ping fails.
func Required(p Pinger) Check {
	return pingCheck(p, StatusDown)
}

// Optional reports a dependency as degraded when its ping fails or when it
// is not configured (p is nil).
func Optional(p Pinger) Check {
	if p == nil {
		return func(context.Context) ComponentHealth {
			return ComponentHealth{Status: StatusDegraded, Message: "not configured"}
		}
	}
	return pingCheck(p, StatusDegraded)
}

func pingCheck(p Pinger, onFailure Status) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := p.Ping(ctx); err != nil {
			return ComponentHealth{Status: onFailure, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// LiveHandler answers liveness probes. It never touches dependencies.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness probes with the full report; only a down
// dependency makes it return 503.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		code := http.StatusOK
		if report.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
