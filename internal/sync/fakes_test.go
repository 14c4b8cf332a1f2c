package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"business-api/internal/entities"
	"business-api/internal/integrations/bc"
	"business-api/internal/repositories"
	"business-api/internal/tenancy"
	apperrors "business-api/pkg/errors"
)

type fakeERP struct {
	company    string
	records    []map[string]interface{}
	err        error
	lastParams bc.FetchParams
	lastRes    string
}

func (f *fakeERP) Company() string { return f.company }

func (f *fakeERP) Fetch(_ context.Context, resource string, params bc.FetchParams) ([]json.RawMessage, error) {
	f.lastParams = params
	f.lastRes = resource
	if f.err != nil {
		return nil, f.err
	}
	out := make([]json.RawMessage, 0, len(f.records))
	for _, r := range f.records {
		if params.FilterField != "" && fmt.Sprint(r[params.FilterField]) != params.FilterValue {
			continue
		}
		raw, _ := json.Marshal(r)
		out = append(out, raw)
	}
	if params.Top > 0 && len(out) > params.Top {
		out = out[:params.Top]
	}
	return out, nil
}

type fakeTx struct {
	pgx.Tx
	onRollback func()
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Commit(context.Context) error { tx.committed = true; return nil }

func (tx *fakeTx) Rollback(context.Context) error {
	if !tx.committed && !tx.rolledBack {
		tx.rolledBack = true
		if tx.onRollback != nil {
			tx.onRollback()
		}
	}
	return nil
}

type fakeConn struct {
	onBegin func(tx *fakeTx)
	txs     []*fakeTx
}

func (c *fakeConn) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (c *fakeConn) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (c *fakeConn) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (c *fakeConn) Release()                                               {}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	tx := &fakeTx{}
	if c.onBegin != nil {
		c.onBegin(tx)
	}
	c.txs = append(c.txs, tx)
	return tx, nil
}

// customerStore - таблица customers в памяти с откатом по снимку.
type customerStore struct {
	mu         gosync.Mutex
	rows       map[string]entities.Customer
	nextID     int64
	failInsert string
}

func newCustomerStore() *customerStore {
	return &customerStore{rows: map[string]entities.Customer{}}
}

func (s *customerStore) snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make(map[string]entities.Customer, len(s.rows))
	for k, v := range s.rows {
		rows[k] = v
	}
	nextID := s.nextID
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rows = rows
		s.nextID = nextID
	}
}

func (s *customerStore) seed(externalID, number string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c := entities.Customer{ID: s.nextID, Number: number, DisplayName: "old"}
	c.ExternalID.SetValid(externalID)
	s.rows[externalID] = c
	return c.ID
}

func (s *customerStore) FindByExternalID(_ context.Context, _ pgx.Tx, externalID string) (*entities.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[externalID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &c, nil
}

func (s *customerStore) Insert(_ context.Context, _ pgx.Tx, c *entities.Customer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ExternalID.String == s.failInsert {
		return 0, errors.New("нарушено ограничение customers_number_key")
	}
	s.nextID++
	row := *c
	row.ID = s.nextID
	s.rows[c.ExternalID.String] = row
	return row.ID, nil
}

func (s *customerStore) Update(_ context.Context, _ pgx.Tx, c *entities.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[c.ExternalID.String]; !ok {
		return apperrors.ErrNotFound
	}
	s.rows[c.ExternalID.String] = *c
	return nil
}

func (s *customerStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type fakeRuns struct {
	runs []entities.SyncRun
}

func (f *fakeRuns) Record(_ context.Context, _ repositories.Querier, run entities.SyncRun) error {
	f.runs = append(f.runs, run)
	return nil
}

type fakeOutputCache struct {
	evicted []string
	err     error
}

func (f *fakeOutputCache) Evict(_ context.Context, company, resource string) error {
	if f.err != nil {
		return f.err
	}
	f.evicted = append(f.evicted, company+":"+resource)
	return nil
}

type fixture struct {
	erp   *fakeERP
	conn  *fakeConn
	store *customerStore
	runs  *fakeRuns
	cache *fakeOutputCache
	tc    *tenancy.TenantContext
	eng   *Engine[bc.CustomerDTO, *entities.Customer]
}

func newFixture(records ...map[string]interface{}) *fixture {
	f := &fixture{
		erp:   &fakeERP{company: "acme", records: records},
		store: newCustomerStore(),
		runs:  &fakeRuns{},
		cache: &fakeOutputCache{},
	}
	f.conn = &fakeConn{onBegin: func(tx *fakeTx) { tx.onRollback = f.store.snapshot() }}
	f.tc = tenancy.NewTenantContext("acme", f.conn, f.erp)
	f.eng = NewEngine(CustomerSpec(), Store[*entities.Customer](f.store), Deps{Cache: f.cache, Runs: f.runs})
	return f
}

func guid(n int) string {
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
}

func customerRecord(n int) map[string]interface{} {
	return map[string]interface{}{
		"id":          guid(n),
		"number":      fmt.Sprintf("C%05d", n),
		"displayName": fmt.Sprintf("Customer %d", n),
		"email":       fmt.Sprintf("c%d@example.com", n),
		"balanceDue":  "125.50",
		"creditLimit": 1000,
	}
}

func customerRecords(n int) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, customerRecord(i))
	}
	return out
}
