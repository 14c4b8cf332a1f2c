package tenancy

import (
	"sync"

	"business-api/internal/integrations/bc"
)

// DBLease - соединение с БД компании, принадлежащее одному запросу.
// Release идемпотентен и безопасен на любом пути выхода.
type DBLease struct {
	company string
	conn    Conn
	once    sync.Once
	onDone  func()
}

func newDBLease(company string, conn Conn, onDone func()) *DBLease {
	return &DBLease{company: company, conn: conn, onDone: onDone}
}

func (l *DBLease) Company() string { return l.company }

func (l *DBLease) Conn() Conn { return l.conn }

func (l *DBLease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.conn.Release()
		if l.onDone != nil {
			l.onDone()
		}
	})
}

// TenantContext - всё, что нужно запросу для работы с одной компанией.
type TenantContext struct {
	Company string
	DB      *DBLease
	ERP     bc.ClientInterface
}

func (tc *TenantContext) Release() {
	if tc == nil {
		return
	}
	tc.DB.Release()
}

// NewTenantContext собирает контекст из уже арендованного соединения.
// Нужен CLI и тестам, которые получают соединение не через Resolver.
func NewTenantContext(company string, conn Conn, erp bc.ClientInterface) *TenantContext {
	return &TenantContext{Company: company, DB: newDBLease(company, conn, nil), ERP: erp}
}
