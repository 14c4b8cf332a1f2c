// Файл: internal/services/sync_service.go
package services

import (
	"context"

	"go.uber.org/zap"

	"business-api/internal/sync"
	"business-api/internal/tenancy"
)

type SyncServiceInterface interface {
	SyncAll(ctx context.Context, tc *tenancy.TenantContext, resource string) (*sync.Report, error)
	SyncOne(ctx context.Context, tc *tenancy.TenantContext, resource, key string) (*sync.Report, error)
	Resources() []string
}

type SyncService struct {
	registry *sync.Registry
	logger   *zap.Logger
}

func NewSyncService(registry *sync.Registry, logger *zap.Logger) SyncServiceInterface {
	return &SyncService{registry: registry, logger: logger}
}

func (s *SyncService) SyncAll(ctx context.Context, tc *tenancy.TenantContext, resource string) (*sync.Report, error) {
	syncer, err := s.registry.Get(resource)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Запуск синхронизации", zap.String("company", tc.Company), zap.String("resource", resource))
	return syncer.Run(ctx, tc)
}

func (s *SyncService) SyncOne(ctx context.Context, tc *tenancy.TenantContext, resource, key string) (*sync.Report, error) {
	syncer, err := s.registry.Get(resource)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Синхронизация записи", zap.String("company", tc.Company), zap.String("resource", resource), zap.String("key", key))
	return syncer.RunOne(ctx, tc, key)
}

func (s *SyncService) Resources() []string { return s.registry.Resources() }
