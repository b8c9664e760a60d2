package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional dependency is failing; requests are still served.
	Degraded Status = "degraded"
	// Unhealthy indicates no catalog index is available.
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

// CheckIndex is the name of the mandatory index check.
const CheckIndex = "index"

// DefaultCheckTimeout bounds each dependency probe.
const DefaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type probe struct {
	name  string
	check func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	index   IndexReadiness
	probes  []probe
	timeout time.Duration
}

// Option configures optional health probes.
type Option func(*Service)

// WithPinger adds a store probe under name. A nil pinger is ignored.
func WithPinger(name string, p Pinger) Option {
	return func(s *Service) {
		if p != nil {
			s.probes = append(s.probes, probe{name: name, check: p.Ping})
		}
	}
}

// WithProvider adds a provider probe under name. A nil checker is ignored.
func WithProvider(name string, c ProviderChecker) Option {
	return func(s *Service) {
		if c != nil {
			s.probes = append(s.probes, probe{name: name, check: c.HealthCheck})
		}
	}
}

// WithTimeout overrides DefaultCheckTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Service.
func New(index IndexReadiness, opts ...Option) *Service {
	s := &Service{index: index, timeout: DefaultCheckTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.probes)+1)

	checks[CheckIndex] = CheckOK
	if !s.index.Ready() {
		checks[CheckIndex] = CheckError
	}

	for _, p := range s.probes {
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		if err := p.check(pctx); err != nil {
			checks[p.name] = CheckError
		} else {
			checks[p.name] = CheckOK
		}
		cancel()
	}

	if checks[CheckIndex] == CheckError {
		return Report{Status: Unhealthy, Checks: checks}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
