package monitoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name        string       `json:"name"`
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked time.Time    `json:"last_checked"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Service   string        `json:"service"`
	Checks    []HealthCheck `json:"checks"`
}

// HealthChecker interface for health check implementations
type HealthChecker interface {
	Check(ctx context.Context) HealthCheck
}

// DatabaseHealthChecker checks database connectivity
type DatabaseHealthChecker struct {
	db *sql.DB
}

// NewDatabaseHealthChecker creates a new database health checker
func NewDatabaseHealthChecker(db *sql.DB) *DatabaseHealthChecker {
	return &DatabaseHealthChecker{db: db}
}

// Check pings the database
func (c *DatabaseHealthChecker) Check(ctx context.Context) HealthCheck {
	check := HealthCheck{
		Name:        "database",
		Status:      HealthStatusHealthy,
		LastChecked: time.Now(),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.db.PingContext(pingCtx); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = err.Error()
	}

	return check
}

// HealthManager manages health checks for a service
type HealthManager struct {
	serviceName string
	checkers    []HealthChecker
}

// NewHealthManager creates a new health manager
func NewHealthManager(serviceName string, checkers ...HealthChecker) *HealthManager {
	return &HealthManager{
		serviceName: serviceName,
		checkers:    checkers,
	}
}

// Report runs all checks and aggregates a report
func (hm *HealthManager) Report(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Service:   hm.serviceName,
	}

	for _, checker := range hm.checkers {
		check := checker.Check(ctx)
		report.Checks = append(report.Checks, check)
		if check.Status != HealthStatusHealthy {
			report.Status = HealthStatusUnhealthy
		}
	}

	return report
}

// Handler returns an HTTP handler serving the health report
func (hm *HealthManager) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hm.Report(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status != HealthStatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	}
}
