// Package health aggregates component checks for the API health endpoint.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
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
	Index  string
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store     IndexStore
	embedding EmbeddingChecker
}

// New creates a Service. embedding can be nil.
func New(store IndexStore, embedding EmbeddingChecker) *Service {
	return &Service{store: store, embedding: embedding}
}

// Check runs health checks against all components. A reachable store with a
// missing index is reported degraded: the ingester has not finished yet.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.store.HealthCheck(ctx); err != nil {
		checks["index_store"] = CheckError
		checks["index"] = CheckError
	} else {
		checks["index_store"] = CheckOK
		if exists, err := s.store.IndexExists(ctx); err != nil || !exists {
			checks["index"] = CheckError
		} else {
			checks["index"] = CheckOK
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Index: s.store.Index(), Checks: checks}
}
