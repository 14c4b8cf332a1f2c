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

const paymentTermTable = "payment_terms"

type PaymentTermRepositoryInterface interface {
	FindByExternalID(ctx context.Context, tx pgx.Tx, externalID string) (*entities.PaymentTerm, error)
	Insert(ctx context.Context, tx pgx.Tx, term *entities.PaymentTerm) (int64, error)
	Update(ctx context.Context, tx pgx.Tx, term *entities.PaymentTerm) error
}

type PaymentTermRepository struct{}

func NewPaymentTermRepository() *PaymentTermRepository {
	return &PaymentTermRepository{}
}

func scanPaymentTerm(row pgx.Row) (*entities.PaymentTerm, error) {
	var p entities.PaymentTerm
	err := row.Scan(
		&p.ID, &p.ExternalID, &p.Code, &p.DisplayName, &p.DueDateCalculation,
		&p.DiscountDateCalc, &p.DiscountPercent, &p.CalculateDiscountOnCM, &p.RemoteUpdatedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования payment term: %w", err)
	}
	return &p, nil
}

func (r *PaymentTermRepository) FindByExternalID(ctx context.Context, tx pgx.Tx, externalID string) (*entities.PaymentTerm, error) {
	query, args, err := psql().Select(
		"id", "external_id", "code", "display_name", "due_date_calculation",
		"discount_date_calculation", "discount_percent", "calc_discount_on_credit_memos", "remote_updated_at",
		"created_at", "updated_at",
	).From(paymentTermTable).
		Where(sq.Eq{"external_id": externalID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, err
	}
	return scanPaymentTerm(tx.QueryRow(ctx, query, args...))
}

func (r *PaymentTermRepository) Insert(ctx context.Context, tx pgx.Tx, p *entities.PaymentTerm) (int64, error) {
	query := `
		INSERT INTO payment_terms (external_id, code, display_name, due_date_calculation,
			discount_date_calculation, discount_percent, calc_discount_on_credit_memos, remote_updated_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id
	`
	var id int64
	err := tx.QueryRow(ctx, query,
		p.ExternalID, p.Code, p.DisplayName, p.DueDateCalculation,
		p.DiscountDateCalc, p.DiscountPercent, p.CalculateDiscountOnCM, p.RemoteUpdatedAt,
	).Scan(&id)
	return id, err
}

func (r *PaymentTermRepository) Update(ctx context.Context, tx pgx.Tx, p *entities.PaymentTerm) error {
	query := `
		UPDATE payment_terms
		SET external_id = $1, code = $2, display_name = $3, due_date_calculation = $4,
		    discount_date_calculation = $5, discount_percent = $6, calc_discount_on_credit_memos = $7,
		    remote_updated_at = $8, updated_at = NOW()
		WHERE id = $9
	`
	return execAffectingOne(ctx, tx, query,
		p.ExternalID, p.Code, p.DisplayName, p.DueDateCalculation,
		p.DiscountDateCalc, p.DiscountPercent, p.CalculateDiscountOnCM, p.RemoteUpdatedAt, p.ID,
	)
}
