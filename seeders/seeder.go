package seeders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"business-api/internal/entities"
	"business-api/internal/integrations/bc"
	"business-api/internal/repositories"
	"business-api/pkg/database/postgresql"
	"business-api/pkg/secrets"
)

// TenantSeed - запись файла с компаниями. Секрет ERP в файле открытым текстом,
// в справочник он попадает только зашифрованным.
type TenantSeed struct {
	Code         string `json:"code"`
	BusinessName string `json:"business_name"`
	DatabaseDSN  string `json:"database_dsn"`
	IsActive     *bool  `json:"is_active"`
	BC           struct {
		BaseURL     string `json:"base_url"`
		Environment string `json:"environment"`
		CompanyID   string `json:"company_id"`
		AuthType    string `json:"auth_type"`
		Username    string `json:"username"`
		Secret      string `json:"secret"`
		TokenURL    string `json:"token_url"`
		ClientID    string `json:"client_id"`
		Scope       string `json:"scope"`
	} `json:"bc"`
}

func (s TenantSeed) active() bool {
	return s.IsActive == nil || *s.IsActive
}

func (s TenantSeed) erpConfig() bc.Config {
	conn := entities.BCConnection{
		BaseURL:     s.BC.BaseURL,
		Environment: s.BC.Environment,
		CompanyID:   s.BC.CompanyID,
		AuthType:    s.BC.AuthType,
		Username:    s.BC.Username,
		TokenURL:    s.BC.TokenURL,
		ClientID:    s.BC.ClientID,
		Scope:       s.BC.Scope,
	}
	if conn.AuthType == "" {
		conn.AuthType = entities.BCAuthBasic
	}
	return bc.ConfigFromTenant(conn, s.BC.Secret)
}

// Validate отсеивает компании, которые всё равно не смогут резолвиться.
func (s TenantSeed) Validate() error {
	if strings.TrimSpace(s.Code) == "" {
		return fmt.Errorf("не задан код компании")
	}
	if _, err := postgresql.ParseDSN(s.DatabaseDSN); err != nil {
		return fmt.Errorf("компания %s: %w", s.Code, err)
	}
	if err := s.erpConfig().Validate(); err != nil {
		return fmt.Errorf("компания %s: %w", s.Code, err)
	}
	return nil
}

func LoadTenantSeeds(r io.Reader) ([]TenantSeed, error) {
	var seeds []TenantSeed
	if err := json.NewDecoder(r).Decode(&seeds); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла компаний: %w", err)
	}
	return seeds, nil
}

// SeedTenants вставляет или обновляет компании по коду в одной транзакции.
func SeedTenants(ctx context.Context, db repositories.Beginner, box *secrets.Box, seeds []TenantSeed, logger *zap.Logger) (int, error) {
	for _, s := range seeds {
		if err := s.Validate(); err != nil {
			return 0, err
		}
	}

	err := repositories.NewTxManager(db).RunInTransaction(ctx, func(tx pgx.Tx) error {
		for _, s := range seeds {
			query, args, err := upsertTenant(s, box)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("ошибка записи компании %s: %w", s.Code, err)
			}
			logger.Info("Компания записана в справочник", zap.String("company", strings.ToLower(strings.TrimSpace(s.Code))))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(seeds), nil
}

func upsertTenant(s TenantSeed, box *secrets.Box) (string, []interface{}, error) {
	cfg := s.erpConfig()
	secret := cfg.Auth.Secret
	if box != nil {
		sealed, err := box.Seal(secret)
		if err != nil {
			return "", nil, err
		}
		secret = sealed
	}

	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Insert("tenants").
		Columns(
			"code", "business_name", "db_dsn",
			"bc_base_url", "bc_environment", "bc_company_id", "bc_auth_type",
			"bc_username", "bc_secret_enc", "bc_token_url", "bc_client_id", "bc_scope",
			"is_active",
		).
		Values(
			strings.ToLower(strings.TrimSpace(s.Code)), s.BusinessName, s.DatabaseDSN,
			cfg.BaseURL, cfg.Environment, cfg.CompanyID, cfg.Auth.Type,
			cfg.Auth.Username, secret, cfg.Auth.TokenURL, cfg.Auth.ClientID, cfg.Auth.Scope,
			s.active(),
		).
		Suffix(`ON CONFLICT ((lower(code))) DO UPDATE SET
			business_name = EXCLUDED.business_name, db_dsn = EXCLUDED.db_dsn,
			bc_base_url = EXCLUDED.bc_base_url, bc_environment = EXCLUDED.bc_environment,
			bc_company_id = EXCLUDED.bc_company_id, bc_auth_type = EXCLUDED.bc_auth_type,
			bc_username = EXCLUDED.bc_username, bc_secret_enc = EXCLUDED.bc_secret_enc,
			bc_token_url = EXCLUDED.bc_token_url, bc_client_id = EXCLUDED.bc_client_id,
			bc_scope = EXCLUDED.bc_scope, is_active = EXCLUDED.is_active, updated_at = NOW()`).
		ToSql()
}
