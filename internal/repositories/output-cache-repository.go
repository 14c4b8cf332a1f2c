package repositories

import (
	"context"
	"fmt"
)

// OutputCacheRepository сбрасывает закешированные ответы API по тегу компания+ресурс.
type OutputCacheRepository struct {
	cache CacheRepositoryInterface
}

func NewOutputCacheRepository(cache CacheRepositoryInterface) *OutputCacheRepository {
	return &OutputCacheRepository{cache: cache}
}

func OutputCacheKey(company, resource, suffix string) string {
	return fmt.Sprintf("out:%s:%s:%s", company, resource, suffix)
}

func (r *OutputCacheRepository) Evict(ctx context.Context, company, resource string) error {
	_, err := r.cache.DelByPattern(ctx, OutputCacheKey(company, resource, "*"))
	return err
}
