package services

import (
	"context"
	"log/slog"
	"time"

	"nhstac/pkg/contracts"
)

// HealthService reports whether the browser can reach its store
type HealthService struct {
	store     FactStore
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Tables    int       `json:"tables"`
	Message   string    `json:"message,omitempty"`
}

// NewHealthService creates a health service
func NewHealthService(store FactStore, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		store:     store,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck lists the store's tables; a failure reports "degraded"
func (s *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   contracts.Version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}

	tables, err := s.store.Tables(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "health_check_degraded", slog.String("error", err.Error()))
		status.Status = "degraded"
		status.Message = err.Error()
		return status
	}
	status.Tables = len(tables)
	return status
}
