package services

import (
	"context"

	"go.uber.org/zap"

	"business-api/internal/tenancy"
)

type DirectoryInvalidator interface {
	Invalidate(ctx context.Context, code string) error
}

type ResourceEvicter interface {
	Evict(code string)
}

type TenantServiceInterface interface {
	Invalidate(ctx context.Context, code string) error
}

// TenantService сбрасывает всё, что закешировано по компании: запись справочника, пул и клиента ERP.
type TenantService struct {
	directory DirectoryInvalidator
	resolver  ResourceEvicter
	logger    *zap.Logger
}

func NewTenantService(directory DirectoryInvalidator, resolver ResourceEvicter, logger *zap.Logger) TenantServiceInterface {
	return &TenantService{directory: directory, resolver: resolver, logger: logger}
}

func (s *TenantService) Invalidate(ctx context.Context, code string) error {
	code = tenancy.NormalizeCode(code)
	if err := s.directory.Invalidate(ctx, code); err != nil {
		return err
	}
	s.resolver.Evict(code)
	s.logger.Info("Кеш компании сброшен", zap.String("company", code))
	return nil
}
