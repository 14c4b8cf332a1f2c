// Файл: internal/tenancy/directory.go
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"business-api/internal/entities"
	"business-api/internal/repositories"
	apperrors "business-api/pkg/errors"
)

const tenantTable = "tenants"

// Directory - справочник компаний control-plane. Только чтение.
type Directory interface {
	GetTenantByCode(ctx context.Context, code string) (*entities.Tenant, error)
	ListActiveTenants(ctx context.Context) ([]entities.Tenant, error)
}

// NormalizeCode приводит код компании к каноническому виду: коды нечувствительны к регистру.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

type PostgresDirectory struct {
	storage repositories.Querier
	logger  *zap.Logger
}

func NewPostgresDirectory(storage repositories.Querier, logger *zap.Logger) *PostgresDirectory {
	return &PostgresDirectory{storage: storage, logger: logger}
}

func tenantSelect() sq.SelectBuilder {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).Select(
		"id", "code", "business_name", "db_dsn",
		"bc_base_url", "bc_environment", "bc_company_id", "bc_auth_type",
		"bc_username", "bc_secret_enc", "bc_token_url", "bc_client_id", "bc_scope",
		"is_active", "updated_at",
	).From(tenantTable)
}

func scanTenant(row pgx.Row) (*entities.Tenant, error) {
	var t entities.Tenant
	var env, username, secret, tokenURL, clientID, scope null.String

	err := row.Scan(
		&t.ID, &t.Code, &t.BusinessName, &t.DatabaseDSN,
		&t.BC.BaseURL, &env, &t.BC.CompanyID, &t.BC.AuthType,
		&username, &secret, &tokenURL, &clientID, &scope,
		&t.IsActive, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования tenant: %w", err)
	}

	t.Code = NormalizeCode(t.Code)
	t.BC.Environment = env.String
	t.BC.Username = username.String
	t.BC.SecretEnc = secret.String
	t.BC.TokenURL = tokenURL.String
	t.BC.ClientID = clientID.String
	t.BC.Scope = scope.String
	return &t, nil
}

// GetTenantByCode: неизвестный и деактивированный код одинаково дают ErrTenantNotFound.
func (d *PostgresDirectory) GetTenantByCode(ctx context.Context, code string) (*entities.Tenant, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, apperrors.ErrTenantNotFound
	}

	query, args, err := tenantSelect().
		Where(sq.Eq{"lower(code)": code, "is_active": true}).
		ToSql()
	if err != nil {
		return nil, err
	}

	tenant, err := scanTenant(d.storage.QueryRow(ctx, query, args...))
	if err != nil {
		if !errors.Is(err, apperrors.ErrTenantNotFound) {
			d.logger.Error("Ошибка чтения справочника компаний", zap.String("company", code), zap.Error(err))
		}
		return nil, err
	}
	return tenant, nil
}

func (d *PostgresDirectory) ListActiveTenants(ctx context.Context) ([]entities.Tenant, error) {
	query, args, err := tenantSelect().
		Where(sq.Eq{"is_active": true}).
		OrderBy("code").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := d.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения справочника компаний: %w", err)
	}
	defer rows.Close()

	tenants := make([]entities.Tenant, 0)
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}
