package entities

import "time"

// Способы аутентификации в Business Central.
const (
	BCAuthBasic  = "basic"
	BCAuthOAuth2 = "oauth2"
)

// Tenant - компания из справочника control-plane. Для ядра только на чтение.
type Tenant struct {
	ID           int64        `json:"id"`
	Code         string       `json:"code"`
	BusinessName string       `json:"business_name"`
	DatabaseDSN  string       `json:"database_dsn"`
	BC           BCConnection `json:"bc"`
	IsActive     bool         `json:"is_active"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// BCConnection - параметры подключения к Business Central конкретной компании.
// SecretEnc хранится зашифрованным (secretbox) и расшифровывается только при сборке клиента.
type BCConnection struct {
	BaseURL     string `json:"base_url"`
	Environment string `json:"environment"`
	CompanyID   string `json:"company_id"`
	AuthType    string `json:"auth_type"`
	Username    string `json:"username"`
	SecretEnc   string `json:"secret_enc"`
	TokenURL    string `json:"token_url"`
	ClientID    string `json:"client_id"`
	Scope       string `json:"scope"`
}
