package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"business-api/internal/entities"
	"business-api/internal/repositories"
	apperrors "business-api/pkg/errors"
)

type fakeDirectory struct {
	mu      sync.Mutex
	tenants map[string]entities.Tenant
	calls   atomic.Int32
}

func newFakeDirectory(tenants ...entities.Tenant) *fakeDirectory {
	d := &fakeDirectory{tenants: map[string]entities.Tenant{}}
	for _, t := range tenants {
		d.put(t)
	}
	return d
}

func (d *fakeDirectory) put(t entities.Tenant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tenants[NormalizeCode(t.Code)] = t
}

func (d *fakeDirectory) GetTenantByCode(_ context.Context, code string) (*entities.Tenant, error) {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tenants[NormalizeCode(code)]
	if !ok || !t.IsActive {
		return nil, apperrors.ErrTenantNotFound
	}
	return &t, nil
}

func (d *fakeDirectory) ListActiveTenants(_ context.Context) ([]entities.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]entities.Tenant, 0, len(d.tenants))
	for _, t := range d.tenants {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeConn struct {
	dsn      string
	releases atomic.Int32
}

func (c *fakeConn) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (c *fakeConn) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (c *fakeConn) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (c *fakeConn) Begin(context.Context) (pgx.Tx, error)                 { return nil, errors.New("not supported") }
func (c *fakeConn) Release()                                               { c.releases.Add(1) }

type fakePool struct {
	dsn        string
	acquireErr error
	closed     atomic.Bool
}

func (p *fakePool) Acquire(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return &fakeConn{dsn: p.dsn}, nil
}

func (p *fakePool) Close() { p.closed.Store(true) }

type fakeFactory struct {
	mu    sync.Mutex
	pools []*fakePool
	calls atomic.Int32
	delay time.Duration
	fail  map[string]error
	// hold задерживает открытие, пока канал не закрыт или не истёк ctx фабрики.
	hold chan struct{}
}

func (f *fakeFactory) open(ctx context.Context, dsn string) (Pool, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.hold != nil {
		select {
		case <-f.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.fail[dsn]; ok {
		return nil, err
	}
	p := &fakePool{dsn: dsn}
	f.mu.Lock()
	f.pools = append(f.pools, p)
	f.mu.Unlock()
	return p, nil
}

func (f *fakeFactory) poolFor(dsn string) []*fakePool {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakePool
	for _, p := range f.pools {
		if p.dsn == dsn {
			out = append(out, p)
		}
	}
	return out
}

func testTenant(code string) entities.Tenant {
	return entities.Tenant{
		ID:           int64(len(code)),
		Code:         code,
		BusinessName: strings.ToUpper(code) + " LLC",
		DatabaseDSN:  fmt.Sprintf("postgres://app:pw@db-%s:5432/%s", code, code),
		BC: entities.BCConnection{
			BaseURL:   "https://bc.example.com/" + code,
			CompanyID: "cmp-" + code,
			AuthType:  entities.BCAuthBasic,
			Username:  "svc",
			SecretEnc: "key-" + code,
		},
		IsActive:  true,
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

type fakeCache struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
}

var _ repositories.CacheRepositoryInterface = (*fakeCache)(nil)

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]string{}} }

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", c.getErr
	}
	v, ok := c.data[key]
	if !ok {
		return "", repositories.ErrCacheMiss
	}
	return v, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		c.data[key] = string(v)
	default:
		c.data[key] = fmt.Sprint(v)
	}
	return nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *fakeCache) DelByPattern(_ context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	n := 0
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}
