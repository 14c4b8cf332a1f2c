package repositories

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"

	"business-api/internal/entities"
)

const bookingTable = "equipment_bookings"

type BookingRepository struct{}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{}
}

// FindOverlapping - предварительный отбор в SQL: пересечение отрезков включительно.
func (r *BookingRepository) FindOverlapping(ctx context.Context, db Querier, equipmentID int64, start, end time.Time, excludeRequestID null.Int64) ([]entities.Booking, error) {
	builder := psql().Select("id", "equipment_id", "request_id", "start_date", "end_date", "created_at").
		From(bookingTable).
		Where(sq.Eq{"equipment_id": equipmentID}).
		Where(sq.LtOrEq{"start_date": end}).
		Where(sq.GtOrEq{"end_date": start}).
		OrderBy("start_date", "id")
	if excludeRequestID.Valid {
		builder = builder.Where(sq.NotEq{"request_id": excludeRequestID.Int64})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки бронирований: %w", err)
	}
	defer rows.Close()

	bookings := make([]entities.Booking, 0)
	for rows.Next() {
		var b entities.Booking
		if err := rows.Scan(&b.ID, &b.EquipmentID, &b.RequestID, &b.StartDate, &b.EndDate, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *BookingRepository) Insert(ctx context.Context, tx pgx.Tx, b entities.Booking) (int64, error) {
	query := `
		INSERT INTO equipment_bookings (equipment_id, request_id, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id
	`
	var id int64
	err := tx.QueryRow(ctx, query, b.EquipmentID, b.RequestID, b.StartDate, b.EndDate).Scan(&id)
	return id, err
}

// LockEquipment сериализует бронирования одного оборудования до конца транзакции.
func (r *BookingRepository) LockEquipment(ctx context.Context, tx pgx.Tx, equipmentID int64) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, equipmentID)
	return err
}
