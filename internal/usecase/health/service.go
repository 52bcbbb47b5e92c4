package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
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

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store    StorePinger
	upstream UpstreamChecker
}

// New creates a Service. store is nil when checkpointing is disabled.
func New(store StorePinger, upstream UpstreamChecker) *Service {
	return &Service{store: store, upstream: upstream}
}

// Check runs health checks against all components. An upstream failure is
// Unhealthy; a checkpoint store failure is Degraded.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			checks["checkpoint_store"] = CheckError
			status = Degraded
		} else {
			checks["checkpoint_store"] = CheckOK
		}
	}

	if s.upstream != nil {
		if err := s.upstream.HealthCheck(ctx); err != nil {
			checks["upstream"] = CheckError
			status = Unhealthy
		} else {
			checks["upstream"] = CheckOK
		}
	}

	return Report{Status: status, Checks: checks}
}
