// Файл: internal/scheduling/checker.go
package scheduling

import (
	"context"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"business-api/internal/entities"
	"business-api/internal/repositories"
	apperrors "business-api/pkg/errors"
	"business-api/pkg/monitoring"
)

type BookingStore interface {
	FindOverlapping(ctx context.Context, db repositories.Querier, equipmentID int64, start, end time.Time, excludeRequestID null.Int64) ([]entities.Booking, error)
	Insert(ctx context.Context, tx pgx.Tx, b entities.Booking) (int64, error)
	LockEquipment(ctx context.Context, tx pgx.Tx, equipmentID int64) error
}

type Checker struct {
	store   BookingStore
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func NewChecker(store BookingStore, metrics *monitoring.Metrics, logger *zap.Logger) *Checker {
	return &Checker{store: store, metrics: metrics, logger: logger.Named("booking_checker")}
}

// Validate только проверяет и ничего не бронирует. Две параллельные проверки
// пересекающихся отрезков обе могут получить Allowed; атомарно бронирует Reserve.
func (c *Checker) Validate(ctx context.Context, db repositories.Querier, q Query) (*Decision, error) {
	if err := q.Check(); err != nil {
		c.metrics.BookingCheck("invalid")
		return nil, err
	}
	return c.evaluate(ctx, db, q.normalized())
}

func (c *Checker) evaluate(ctx context.Context, db repositories.Querier, q Query) (*Decision, error) {
	candidates, err := c.store.FindOverlapping(ctx, db, q.EquipmentID, q.StartDate, q.EndDate, q.ExcludeRequestID)
	if err != nil {
		c.metrics.BookingCheck("error")
		return nil, err
	}
	decision, err := Evaluate(candidates, q)
	if err != nil {
		return nil, err
	}
	if decision.Allowed {
		c.metrics.BookingCheck("allowed")
	} else {
		c.metrics.BookingCheck("conflict")
	}
	return decision, nil
}

// Reserve проверяет и бронирует в одной транзакции под advisory-блокировкой оборудования.
// Брони той же заявки не считаются конфликтом.
func (c *Checker) Reserve(ctx context.Context, conn repositories.Beginner, requestID int64, q Query) (*entities.Booking, error) {
	if requestID <= 0 {
		return nil, apperrors.NewValidationError("request_id", "идентификатор заявки должен быть положительным")
	}
	if err := q.Check(); err != nil {
		c.metrics.BookingCheck("invalid")
		return nil, err
	}
	q = q.normalized()
	q.ExcludeRequestID = null.Int64From(requestID)

	var booking *entities.Booking
	err := repositories.NewTxManager(conn).RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := c.store.LockEquipment(ctx, tx, q.EquipmentID); err != nil {
			return err
		}
		decision, err := c.evaluate(ctx, tx, q)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return &apperrors.ConflictError{
				EquipmentID: q.EquipmentID,
				Conflicts:   decision.Conflicts,
				Count:       len(decision.Conflicts),
			}
		}

		b := entities.Booking{EquipmentID: q.EquipmentID, RequestID: requestID, StartDate: q.StartDate, EndDate: q.EndDate}
		id, err := c.store.Insert(ctx, tx, b)
		if err != nil {
			return err
		}
		b.ID = id
		booking = &b
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Оборудование забронировано",
		zap.Int64("equipment_id", booking.EquipmentID),
		zap.Int64("request_id", requestID),
		zap.String("start", booking.StartDate.Format(time.DateOnly)),
		zap.String("end", booking.EndDate.Format(time.DateOnly)),
	)
	return booking, nil
}
