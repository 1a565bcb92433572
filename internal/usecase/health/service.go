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
	Checks map[string]CheckResult
}

// Service coordinates health checks. The metadata and vector backends are
// probed independently; one failing never masks the other.
type Service struct {
	metadata  MetadataPinger
	vectors   VectorChecker
	embedding EmbeddingChecker
}

// New creates a Service. vectors and embedding can be nil.
func New(metadata MetadataPinger, vectors VectorChecker, embedding EmbeddingChecker) *Service {
	return &Service{metadata: metadata, vectors: vectors, embedding: embedding}
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.metadata.Ping(ctx); err != nil {
		checks["metadata"] = CheckError
	} else {
		checks["metadata"] = CheckOK
	}

	if s.vectors != nil {
		if err := s.vectors.HealthCheck(ctx); err != nil {
			checks["vector"] = CheckError
		} else {
			checks["vector"] = CheckOK
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

	return Report{Status: status, Checks: checks}
}
