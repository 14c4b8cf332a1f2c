package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier - общий знаменатель для *pgxpool.Conn, *pgxpool.Pool и pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Beginner открывает транзакцию. Им является арендованное соединение компании.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Conn - соединение с БД компании, которым владеет ровно один запрос.
type Conn interface {
	Querier
	Beginner
}
