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

// Report aggregates health check results.
type Report struct {
	Status    Status
	Checks    map[string]string
	IndexSize int
}

// Service coordinates health checks.
type Service struct {
	db  DBPinger
	idx IndexSizer
}

// New creates a Service. idx can be nil.
func New(db DBPinger, idx IndexSizer) *Service {
	return &Service{db: db, idx: idx}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]string)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = "error"
	} else {
		checks["database"] = "ok"
	}

	report := Report{Status: Healthy, Checks: checks}
	if s.idx != nil {
		report.IndexSize = s.idx.Len()
	}
	for _, v := range checks {
		if v == "error" {
			report.Status = Degraded
			break
		}
	}
	return report
}
