package tenancy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"

	"business-api/internal/repositories"
	"business-api/pkg/database/postgresql"
)

// ErrPoolClosed - пул уже закрыт: его заменили или выселили.
var ErrPoolClosed = errors.New("пул компании закрыт")

// Pool - пул соединений одной компании. После Close Acquire возвращает ErrPoolClosed.
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
	Close()
}

// Conn - арендованное соединение: те же методы, что у *pgxpool.Conn.
type Conn interface {
	repositories.Conn
	Release()
}

// PoolFactory открывает пул по строке подключения компании.
type PoolFactory func(ctx context.Context, dsn string) (Pool, error)

type pgxPool struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

func (p *pgxPool) Acquire(ctx context.Context) (Conn, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		if p.closed.Load() {
			return nil, ErrPoolClosed
		}
		return nil, err
	}
	return conn, nil
}

func (p *pgxPool) Close() {
	p.closed.Store(true)
	p.pool.Close()
}

// PgxPoolFactory - фабрика по умолчанию поверх pgxpool с общими лимитами.
func PgxPoolFactory(base postgresql.PoolConfig) PoolFactory {
	return func(ctx context.Context, dsn string) (Pool, error) {
		cfg := base
		cfg.DSN = dsn
		pool, err := postgresql.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &pgxPool{pool: pool}, nil
	}
}

func dsnFingerprint(dsn string) string {
	sum := sha256.Sum256([]byte(dsn))
	return hex.EncodeToString(sum[:8])
}
