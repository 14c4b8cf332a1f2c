package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"business-api/internal/entities"
	"business-api/internal/repositories"
	"business-api/pkg/secrets"
)

const tenantCachePrefix = "tenant:"

// CachedDirectory - справочник с кешем в Redis. TTL задаёт окно свежести:
// деактивация компании видна не позже чем через TTL, а после Invalidate сразу.
// В кеше лежит только зашифрованный секрет ERP; строка подключения к БД шифруется
// тем же ключом перед записью в Redis. Без ключа оба хранятся как есть.
type CachedDirectory struct {
	next   Directory
	cache  repositories.CacheRepositoryInterface
	box    *secrets.Box
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedDirectory(next Directory, cache repositories.CacheRepositoryInterface, box *secrets.Box, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	return &CachedDirectory{next: next, cache: cache, box: box, ttl: ttl, logger: logger}
}

func tenantCacheKey(code string) string {
	return tenantCachePrefix + NormalizeCode(code)
}

func (d *CachedDirectory) GetTenantByCode(ctx context.Context, code string) (*entities.Tenant, error) {
	key := tenantCacheKey(code)

	raw, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		if t, decErr := d.decode(raw); decErr == nil {
			return t, nil
		}
		d.logger.Warn("Повреждённая запись компании в кеше", zap.String("key", key))
	case !errors.Is(err, repositories.ErrCacheMiss):
		// Redis недоступен: работаем напрямую со справочником.
		d.logger.Warn("Кеш компаний недоступен", zap.Error(err))
	}

	tenant, err := d.next.GetTenantByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	payload, err := d.encode(*tenant)
	if err != nil {
		d.logger.Warn("Не удалось подготовить компанию для кеша", zap.String("key", key), zap.Error(err))
		return tenant, nil
	}
	if err := d.cache.Set(ctx, key, payload, d.ttl); err != nil {
		d.logger.Warn("Не удалось сохранить компанию в кеш", zap.String("key", key), zap.Error(err))
	}
	return tenant, nil
}

func (d *CachedDirectory) encode(t entities.Tenant) ([]byte, error) {
	if d.box != nil {
		sealed, err := d.box.Seal(t.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		t.DatabaseDSN = sealed
	}
	return json.Marshal(t)
}

func (d *CachedDirectory) decode(raw string) (*entities.Tenant, error) {
	var t entities.Tenant
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, err
	}
	dsn, err := secrets.Reveal(d.box, t.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	t.DatabaseDSN = dsn
	return &t, nil
}

// ListActiveTenants всегда читает справочник: используется только планировщиком.
func (d *CachedDirectory) ListActiveTenants(ctx context.Context) ([]entities.Tenant, error) {
	return d.next.ListActiveTenants(ctx)
}

func (d *CachedDirectory) Invalidate(ctx context.Context, code string) error {
	return d.cache.Del(ctx, tenantCacheKey(code))
}
