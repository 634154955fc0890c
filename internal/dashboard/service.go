// Package dashboard answers the avocado and movie dashboard queries by
// running core operations over loaded dataset tables.
package dashboard

import (
	"context"

	"dashboard/internal/core"
	"dashboard/internal/log"
	"dashboard/internal/metrics"
	"dashboard/internal/sources"
)

type Service struct {
	loader  sources.TableLoader
	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewService(loader sources.TableLoader, logger *log.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		loader:  loader,
		logger:  logger.WithComponent(log.ComponentDashboard),
		metrics: m,
	}
}

func (s *Service) table(ctx context.Context, name string) (*core.Table, error) {
	return s.loader.Load(ctx, name)
}

func (s *Service) dropped(ctx context.Context, dataset, op string, n int) {
	s.logger.LogDropped(ctx, dataset, op, n)
	s.metrics.Dropped(dataset, op, n)
}
