package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a non-critical failure.
	Degraded Status = "degraded"
	// Unhealthy indicates a critical failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Detail is one component's outcome.
type Detail struct {
	Status    CheckResult `json:"status"`
	LatencyMs float64     `json:"latency_ms"`
	Error     string      `json:"error,omitempty"`
	Critical  bool        `json:"critical"`
}

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Details map[string]Detail
}

// DefaultTimeout bounds each probe.
const DefaultTimeout = 2 * time.Second

// Service coordinates health checks.
type Service struct {
	components []Component
	timeout    time.Duration
	started    time.Time
}

// New creates a Service. timeout <= 0 uses DefaultTimeout.
func New(timeout time.Duration, components ...Component) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{components: components, timeout: timeout, started: time.Now()}
}

// Check runs every probe concurrently, each bounded by the service timeout.
func (s *Service) Check(ctx context.Context) Report {
	var mu sync.Mutex
	details := make(map[string]Detail, len(s.components))

	var g errgroup.Group
	for _, c := range s.components {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			start := time.Now()
			err := c.Check(cctx)
			d := Detail{
				Status:    CheckOK,
				LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
				Critical:  c.Critical,
			}
			if err != nil {
				d.Status = CheckError
				d.Error = err.Error()
			}
			mu.Lock()
			details[c.Name] = d
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	checks := make(map[string]CheckResult, len(details))
	status := Healthy
	for name, d := range details {
		checks[name] = d.Status
		if d.Status == CheckOK {
			continue
		}
		if d.Critical {
			status = Unhealthy
		} else if status == Healthy {
			status = Degraded
		}
	}
	return Report{Status: status, Checks: checks, Details: details}
}

// Ready reports whether every critical component answers.
func (s *Service) Ready(ctx context.Context) bool {
	return s.Check(ctx).Status != Unhealthy
}

// Uptime returns the time since the service was created.
func (s *Service) Uptime() time.Duration { return time.Since(s.started) }
