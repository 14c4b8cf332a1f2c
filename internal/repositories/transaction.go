package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type TxManagerInterface interface {
	RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type TxManager struct {
	db Beginner
}

// NewTxManager создаётся на каждый запрос поверх арендованного соединения компании.
func NewTxManager(db Beginner) TxManagerInterface {
	return &TxManager{db: db}
}

// RunInTransaction выполняет fn в одной транзакции: ошибка или паника откатывают всё.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("не удалось начать транзакцию: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			// Ошибка отката вторична, возвращаем исходную.
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
			if err != nil {
				err = fmt.Errorf("ошибка при коммите транзакции: %w", err)
			}
		}
	}()

	err = fn(tx)
	return err
}
