package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"business-api/internal/entities"
	apperrors "business-api/pkg/errors"
)

const equipmentTable = "equipment"

type EquipmentRepositoryInterface interface {
	FindByExternalID(ctx context.Context, tx pgx.Tx, externalID string) (*entities.Equipment, error)
	Insert(ctx context.Context, tx pgx.Tx, eq *entities.Equipment) (int64, error)
	Update(ctx context.Context, tx pgx.Tx, eq *entities.Equipment) error
	Exists(ctx context.Context, db Querier, id int64) (bool, error)
}

type EquipmentRepository struct{}

func NewEquipmentRepository() *EquipmentRepository {
	return &EquipmentRepository{}
}

func scanEquipment(row pgx.Row) (*entities.Equipment, error) {
	var e entities.Equipment
	err := row.Scan(
		&e.ID, &e.ExternalID, &e.Number, &e.DisplayName, &e.Category, &e.SerialNumber,
		&e.Blocked, &e.RemoteUpdatedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования equipment: %w", err)
	}
	return &e, nil
}

func (r *EquipmentRepository) FindByExternalID(ctx context.Context, tx pgx.Tx, externalID string) (*entities.Equipment, error) {
	query, args, err := psql().Select(
		"id", "external_id", "number", "display_name", "category", "serial_number",
		"blocked", "remote_updated_at", "created_at", "updated_at",
	).From(equipmentTable).
		Where(sq.Eq{"external_id": externalID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, err
	}
	return scanEquipment(tx.QueryRow(ctx, query, args...))
}

func (r *EquipmentRepository) Insert(ctx context.Context, tx pgx.Tx, e *entities.Equipment) (int64, error) {
	query := `
		INSERT INTO equipment (external_id, number, display_name, category, serial_number, blocked,
			remote_updated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id
	`
	var id int64
	err := tx.QueryRow(ctx, query,
		e.ExternalID, e.Number, e.DisplayName, e.Category, e.SerialNumber, e.Blocked, e.RemoteUpdatedAt,
	).Scan(&id)
	return id, err
}

func (r *EquipmentRepository) Update(ctx context.Context, tx pgx.Tx, e *entities.Equipment) error {
	query := `
		UPDATE equipment
		SET external_id = $1, number = $2, display_name = $3, category = $4, serial_number = $5,
		    blocked = $6, remote_updated_at = $7, updated_at = NOW()
		WHERE id = $8
	`
	return execAffectingOne(ctx, tx, query,
		e.ExternalID, e.Number, e.DisplayName, e.Category, e.SerialNumber, e.Blocked, e.RemoteUpdatedAt, e.ID,
	)
}

func (r *EquipmentRepository) Exists(ctx context.Context, db Querier, id int64) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM equipment WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
