package sync

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"business-api/internal/entities"
	"business-api/internal/tenancy"
)

type TenantLister interface {
	ListActiveTenants(ctx context.Context) ([]entities.Tenant, error)
}

type ContextResolver interface {
	Resolve(ctx context.Context, code string) (*tenancy.TenantContext, error)
}

// RunSummary - итог по одному ресурсу одной компании.
type RunSummary struct {
	Company  string `json:"company"`
	Resource string `json:"resource"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Rejected int    `json:"rejected"`
	Error    string `json:"error,omitempty"`
}

// Scheduler периодически сверяет все ресурсы всех активных компаний.
// Сбой одной компании не останавливает остальные.
type Scheduler struct {
	tenants     TenantLister
	resolver    ContextResolver
	registry    *Registry
	concurrency int
	logger      *zap.Logger
}

func NewScheduler(tenants TenantLister, resolver ContextResolver, registry *Registry, concurrency int, logger *zap.Logger) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		tenants:     tenants,
		resolver:    resolver,
		registry:    registry,
		concurrency: concurrency,
		logger:      logger.Named("sync_scheduler"),
	}
}

// RunOnce обходит компании не более чем в concurrency потоков.
func (s *Scheduler) RunOnce(ctx context.Context) ([]RunSummary, error) {
	tenants, err := s.tenants.ListActiveTenants(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu      gosync.Mutex
		summary = make([]RunSummary, 0, len(tenants)*len(s.registry.Resources()))
	)
	add := func(r RunSummary) {
		mu.Lock()
		summary = append(summary, r)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, t := range tenants {
		code := t.Code
		g.Go(func() error {
			s.syncTenant(ctx, code, add)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Плановая синхронизация завершена", zap.Int("tenants", len(tenants)), zap.Int("runs", len(summary)))
	return summary, ctx.Err()
}

func (s *Scheduler) syncTenant(ctx context.Context, code string, add func(RunSummary)) {
	tc, err := s.resolver.Resolve(ctx, code)
	if err != nil {
		s.logger.Error("Не удалось подключиться к компании", zap.String("company", code), zap.Error(err))
		for _, resource := range s.registry.Resources() {
			add(RunSummary{Company: code, Resource: resource, Error: err.Error()})
		}
		return
	}
	defer tc.Release()

	for _, resource := range s.registry.Resources() {
		if ctx.Err() != nil {
			return
		}
		syncer, _ := s.registry.Get(resource)
		report, err := syncer.Run(ctx, tc)
		if err != nil {
			s.logger.Error("Ошибка синхронизации", zap.String("company", code), zap.String("resource", resource), zap.Error(err))
			add(RunSummary{Company: code, Resource: resource, Error: err.Error()})
			continue
		}
		add(RunSummary{
			Company:  code,
			Resource: resource,
			Created:  report.Created,
			Updated:  report.Updated,
			Rejected: len(report.Rejected),
		})
	}
}

// Start запускает RunOnce по тикеру до отмены ctx.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Плановая синхронизация включена", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Плановая синхронизация не выполнена", zap.Error(err))
			}
		}
	}
}
