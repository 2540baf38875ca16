package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates that ranking runs but returns explicit failure statuses.
	Degraded Status = "degraded"
	// Unhealthy indicates that no entity can be ranked.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckDefault indicates uncalibrated default weights. Not a failure.
	CheckDefault CheckResult = "default"
)

// Report aggregates health check results.
type Report struct {
	Status   Status
	Checks   map[string]CheckResult
	Universe int
}

// Service coordinates health checks.
type Service struct {
	index    IndexPinger
	encoder  EncoderChecker
	weights  WeightsInfo
	universe int
}

// New creates a Service. encoder and weights can be nil.
// universe is the number of scoreable entities loaded at startup.
func New(index IndexPinger, encoder EncoderChecker, weights WeightsInfo, universe int) *Service {
	return &Service{index: index, encoder: encoder, weights: weights, universe: universe}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.index.Ping(ctx); err != nil {
		checks["index"] = CheckError
	} else {
		checks["index"] = CheckOK
	}

	if s.encoder != nil {
		if err := s.encoder.HealthCheck(ctx); err != nil {
			checks["encoder"] = CheckError
		} else {
			checks["encoder"] = CheckOK
		}
	}

	if s.weights != nil {
		if s.weights.Calibrated() {
			checks["weights"] = CheckOK
		} else {
			checks["weights"] = CheckDefault
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if s.universe == 0 {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks, Universe: s.universe}
}
