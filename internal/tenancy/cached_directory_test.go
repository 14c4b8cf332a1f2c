package tenancy

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "business-api/pkg/errors"
	"business-api/pkg/secrets"
)

func TestCachedDirectory_ServesFromCache(t *testing.T) {
	inner := newFakeDirectory(testTenant("acme"))
	dir := NewCachedDirectory(inner, newFakeCache(), nil, time.Minute, zap.NewNop())

	first, err := dir.GetTenantByCode(context.Background(), "acme")
	require.NoError(t, err)
	second, err := dir.GetTenantByCode(context.Background(), "ACME")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedDirectory_InvalidateExposesDeactivation(t *testing.T) {
	tenant := testTenant("acme")
	inner := newFakeDirectory(tenant)
	dir := NewCachedDirectory(inner, newFakeCache(), nil, time.Minute, zap.NewNop())

	_, err := dir.GetTenantByCode(context.Background(), "acme")
	require.NoError(t, err)

	tenant.IsActive = false
	inner.put(tenant)
	require.NoError(t, dir.Invalidate(context.Background(), "acme"))

	_, err = dir.GetTenantByCode(context.Background(), "acme")
	assert.ErrorIs(t, err, apperrors.ErrTenantNotFound)
}

func TestCachedDirectory_NotFoundIsNotCached(t *testing.T) {
	inner := newFakeDirectory()
	cache := newFakeCache()
	dir := NewCachedDirectory(inner, cache, nil, time.Minute, zap.NewNop())

	_, err := dir.GetTenantByCode(context.Background(), "acme")
	require.ErrorIs(t, err, apperrors.ErrTenantNotFound)

	inner.put(testTenant("acme"))
	tenant, err := dir.GetTenantByCode(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.Code)
}

func TestCachedDirectory_FallsBackWhenCacheIsDown(t *testing.T) {
	inner := newFakeDirectory(testTenant("acme"))
	cache := newFakeCache()
	cache.getErr = errors.New("dial tcp: connection refused")
	dir := NewCachedDirectory(inner, cache, nil, time.Minute, zap.NewNop())

	tenant, err := dir.GetTenantByCode(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.Code)
}

func TestCachedDirectory_SealsDSNInCache(t *testing.T) {
	box, err := secrets.NewBox(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))))
	require.NoError(t, err)

	tenant := testTenant("acme")
	inner := newFakeDirectory(tenant)
	cache := newFakeCache()
	dir := NewCachedDirectory(inner, cache, box, time.Minute, zap.NewNop())

	_, err = dir.GetTenantByCode(context.Background(), "acme")
	require.NoError(t, err)

	raw := cache.data[tenantCacheKey("acme")]
	require.NotEmpty(t, raw)
	assert.NotContains(t, raw, "app:pw@")

	cached, err := dir.GetTenantByCode(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.DatabaseDSN, cached.DatabaseDSN)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedDirectory_UnreadableCachedDSNFallsBack(t *testing.T) {
	box, err := secrets.NewBox(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))))
	require.NoError(t, err)

	tenant := testTenant("acme")
	inner := newFakeDirectory(tenant)
	cache := newFakeCache()
	// Запись, сохранённая без ключа.
	require.NoError(t, cache.Set(context.Background(), tenantCacheKey("acme"),
		[]byte(`{"code":"acme","database_dsn":"postgres://plain","is_active":true}`), time.Minute))

	dir := NewCachedDirectory(inner, cache, box, time.Minute, zap.NewNop())
	got, err := dir.GetTenantByCode(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.DatabaseDSN, got.DatabaseDSN)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "acme", NormalizeCode("  AcMe\t"))
	assert.Equal(t, "", NormalizeCode("   "))
}
