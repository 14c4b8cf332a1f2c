// Файл: internal/tenancy/resolver.go
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"business-api/internal/integrations/bc"
	"business-api/pkg/database/postgresql"
	apperrors "business-api/pkg/errors"
	"business-api/pkg/monitoring"
	"business-api/pkg/secrets"
)

// ClientFactory собирает клиента ERP для компании. Его реализует *bc.Adapter.
type ClientFactory interface {
	NewClient(company string, cfg bc.Config) (*bc.Client, error)
}

type ResolverOptions struct {
	ConnectTimeout time.Duration
	ClientTTL      time.Duration
}

type poolEntry struct {
	pool        Pool
	fingerprint string
}

type clientEntry struct {
	client      *bc.Client
	fingerprint string
}

// Resolver по коду компании выдаёт соединение с её БД и клиента её ERP.
// Пулы и клиенты кешируются по компании; разные компании не делят блокировок.
type Resolver struct {
	directory Directory
	factory   PoolFactory
	erp       ClientFactory
	box       *secrets.Box
	opts      ResolverOptions
	metrics   *monitoring.Metrics
	logger    *zap.Logger

	pools   sync.Map // code -> *poolEntry
	group   singleflight.Group
	clients *ristretto.Cache[string, *clientEntry]
	leases  atomic.Int64
}

func NewResolver(
	directory Directory,
	factory PoolFactory,
	erp ClientFactory,
	box *secrets.Box,
	opts ResolverOptions,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) (*Resolver, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.ClientTTL <= 0 {
		opts.ClientTTL = 15 * time.Minute
	}
	clients, err := ristretto.NewCache(&ristretto.Config[string, *clientEntry]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
		// Стоимость записи - 1, без внутренних накладных расходов.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания кеша клиентов ERP: %w", err)
	}
	return &Resolver{
		directory: directory,
		factory:   factory,
		erp:       erp,
		box:       box,
		opts:      opts,
		metrics:   metrics,
		logger:    logger.Named("resolver"),
		clients:   clients,
	}, nil
}

// Resolve выдаёт обе части. Если ERP не резолвится, уже взятое соединение возвращается в пул.
func (r *Resolver) Resolve(ctx context.Context, code string) (*TenantContext, error) {
	lease, err := r.ResolveDB(ctx, code)
	if err != nil {
		return nil, err
	}
	client, err := r.ResolveERP(ctx, code)
	if err != nil {
		lease.Release()
		return nil, err
	}
	return &TenantContext{Company: lease.Company(), DB: lease, ERP: client}, nil
}

// ResolveDB арендует отдельное соединение из пула компании. Вызывающий обязан сделать Release.
func (r *Resolver) ResolveDB(ctx context.Context, code string) (*DBLease, error) {
	for attempt := 0; ; attempt++ {
		tenant, err := r.directory.GetTenantByCode(ctx, code)
		if err != nil {
			r.metrics.Resolution(apperrors.PartDatabase, outcomeOf(err))
			return nil, err
		}

		entry, err := r.pool(ctx, tenant.Code, tenant.DatabaseDSN)
		if err != nil {
			r.metrics.Resolution(apperrors.PartDatabase, "connection_error")
			return nil, err
		}

		conn, err := entry.pool.Acquire(ctx)
		if errors.Is(err, ErrPoolClosed) && attempt == 0 {
			// Пул закрыли между Load и Acquire (смена строки подключения или Evict).
			r.pools.CompareAndDelete(tenant.Code, entry)
			continue
		}
		if err != nil {
			r.metrics.Resolution(apperrors.PartDatabase, "connection_error")
			return nil, apperrors.NewTenantConnectionError(tenant.Code, apperrors.PartDatabase, err)
		}

		r.leases.Add(1)
		r.metrics.Resolution(apperrors.PartDatabase, "ok")
		return newDBLease(tenant.Code, conn, func() { r.leases.Add(-1) }), nil
	}
}

// ResolveERP не трогает БД компании: ERP доступен, даже если её база лежит.
func (r *Resolver) ResolveERP(ctx context.Context, code string) (bc.ClientInterface, error) {
	tenant, err := r.directory.GetTenantByCode(ctx, code)
	if err != nil {
		r.metrics.Resolution(apperrors.PartERP, outcomeOf(err))
		return nil, err
	}

	secret, err := secrets.Reveal(r.box, tenant.BC.SecretEnc)
	if err != nil {
		r.metrics.Resolution(apperrors.PartERP, "connection_error")
		return nil, apperrors.NewTenantConnectionError(tenant.Code, apperrors.PartERP, err)
	}
	cfg := bc.ConfigFromTenant(tenant.BC, secret)
	fp := cfg.Fingerprint()

	if e, ok := r.clients.Get(tenant.Code); ok && e.fingerprint == fp {
		r.metrics.Resolution(apperrors.PartERP, "ok")
		return e.client, nil
	}

	client, err := r.erp.NewClient(tenant.Code, cfg)
	if err != nil {
		r.metrics.Resolution(apperrors.PartERP, "connection_error")
		return nil, err
	}
	r.clients.SetWithTTL(tenant.Code, &clientEntry{client: client, fingerprint: fp}, 1, r.opts.ClientTTL)
	r.clients.Wait()

	r.metrics.Resolution(apperrors.PartERP, "ok")
	return client, nil
}

// pool возвращает пул компании, открывая его не более одного раза на код.
// Смена строки подключения заменяет пул; старый закрывается, когда вернутся все соединения.
// Открытие идёт на отвязанном контексте, но вызывающий ждёт его не дольше своего ctx.
func (r *Resolver) pool(ctx context.Context, code, dsn string) (*poolEntry, error) {
	fp := dsnFingerprint(dsn)
	if v, ok := r.pools.Load(code); ok && v.(*poolEntry).fingerprint == fp {
		return v.(*poolEntry), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTenantConnectionError(code, apperrors.PartDatabase, err)
	}

	ch := r.group.DoChan(code, func() (interface{}, error) {
		if v, ok := r.pools.Load(code); ok && v.(*poolEntry).fingerprint == fp {
			return v.(*poolEntry), nil
		}
		if _, err := postgresql.ParseDSN(dsn); err != nil {
			return nil, apperrors.NewTenantConnectionError(code, apperrors.PartDatabase, err)
		}

		// Пул общий для всех ожидающих: отмена первого запроса не должна его сорвать.
		connectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.ConnectTimeout)
		defer cancel()

		pool, err := r.factory(connectCtx, dsn)
		if err != nil {
			r.logger.Warn("Не удалось открыть пул компании", zap.String("company", code), zap.Error(err))
			return nil, apperrors.NewTenantConnectionError(code, apperrors.PartDatabase, err)
		}
		r.metrics.PoolOpened()

		entry := &poolEntry{pool: pool, fingerprint: fp}
		if old, loaded := r.pools.Swap(code, entry); loaded {
			r.logger.Info("Строка подключения компании изменилась, пул заменён", zap.String("company", code))
			r.closeAsync(old.(*poolEntry).pool)
		}
		return entry, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*poolEntry), nil
	case <-ctx.Done():
		return nil, apperrors.NewTenantConnectionError(code, apperrors.PartDatabase, ctx.Err())
	}
}

func (r *Resolver) closeAsync(p Pool) {
	r.metrics.PoolClosed()
	// pgxpool.Close ждёт возврата всех арендованных соединений.
	go p.Close()
}

// Evict сбрасывает пул и клиента ERP компании. Используется при изменении справочника.
func (r *Resolver) Evict(code string) {
	code = NormalizeCode(code)
	if v, ok := r.pools.LoadAndDelete(code); ok {
		r.closeAsync(v.(*poolEntry).pool)
	}
	r.clients.Del(code)
}

// Close закрывает все пулы. Вызывается при остановке сервиса.
func (r *Resolver) Close() {
	r.pools.Range(func(key, value interface{}) bool {
		r.pools.Delete(key)
		value.(*poolEntry).pool.Close()
		r.metrics.PoolClosed()
		return true
	})
	r.clients.Close()
}

// ActiveLeases - число соединений, не возвращённых в пул.
func (r *Resolver) ActiveLeases() int64 {
	return r.leases.Load()
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrTenantNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrTenantConnection):
		return "connection_error"
	}
	return "error"
}
