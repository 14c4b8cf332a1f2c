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

const customerTable = "customers"

var customerColumns = []string{
	"id", "external_id", "number", "display_name", "email", "phone_number",
	"address_line1", "city", "country", "postal_code", "payment_terms_id",
	"currency_code", "blocked", "balance", "credit_limit", "remote_updated_at",
	"created_at", "updated_at",
}

type CustomerRepositoryInterface interface {
	FindByExternalID(ctx context.Context, tx pgx.Tx, externalID string) (*entities.Customer, error)
	Insert(ctx context.Context, tx pgx.Tx, customer *entities.Customer) (int64, error)
	Update(ctx context.Context, tx pgx.Tx, customer *entities.Customer) error
}

type CustomerRepository struct{}

func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{}
}

func scanCustomer(row pgx.Row) (*entities.Customer, error) {
	var c entities.Customer
	err := row.Scan(
		&c.ID, &c.ExternalID, &c.Number, &c.DisplayName, &c.Email, &c.PhoneNumber,
		&c.AddressLine1, &c.City, &c.Country, &c.PostalCode, &c.PaymentTermsID,
		&c.CurrencyCode, &c.Blocked, &c.Balance, &c.CreditLimit, &c.RemoteUpdatedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования customer: %w", err)
	}
	return &c, nil
}

// FindByExternalID блокирует строку до конца транзакции синхронизации.
func (r *CustomerRepository) FindByExternalID(ctx context.Context, tx pgx.Tx, externalID string) (*entities.Customer, error) {
	query, args, err := psql().Select(customerColumns...).
		From(customerTable).
		Where(sq.Eq{"external_id": externalID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, err
	}
	return scanCustomer(tx.QueryRow(ctx, query, args...))
}

func (r *CustomerRepository) Insert(ctx context.Context, tx pgx.Tx, c *entities.Customer) (int64, error) {
	query, args, err := psql().Insert(customerTable).
		Columns(
			"external_id", "number", "display_name", "email", "phone_number",
			"address_line1", "city", "country", "postal_code", "payment_terms_id",
			"currency_code", "blocked", "balance", "credit_limit", "remote_updated_at",
			"created_at", "updated_at",
		).
		Values(
			c.ExternalID, c.Number, c.DisplayName, c.Email, c.PhoneNumber,
			c.AddressLine1, c.City, c.Country, c.PostalCode, c.PaymentTermsID,
			c.CurrencyCode, c.Blocked, c.Balance, c.CreditLimit, c.RemoteUpdatedAt,
			sq.Expr("NOW()"), sq.Expr("NOW()"),
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *CustomerRepository) Update(ctx context.Context, tx pgx.Tx, c *entities.Customer) error {
	query, args, err := psql().Update(customerTable).
		SetMap(map[string]interface{}{
			"external_id":       c.ExternalID,
			"number":            c.Number,
			"display_name":      c.DisplayName,
			"email":             c.Email,
			"phone_number":      c.PhoneNumber,
			"address_line1":     c.AddressLine1,
			"city":              c.City,
			"country":           c.Country,
			"postal_code":       c.PostalCode,
			"payment_terms_id":  c.PaymentTermsID,
			"currency_code":     c.CurrencyCode,
			"blocked":           c.Blocked,
			"balance":           c.Balance,
			"credit_limit":      c.CreditLimit,
			"remote_updated_at": c.RemoteUpdatedAt,
			"updated_at":        sq.Expr("NOW()"),
		}).
		Where(sq.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return err
	}
	return execAffectingOne(ctx, tx, query, args...)
}
