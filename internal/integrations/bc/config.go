// Файл: internal/integrations/bc/config.go
package bc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"business-api/internal/entities"
)

// Config - полный набор параметров одного вызова. Адаптер не хранит его между вызовами.
type Config struct {
	BaseURL     string
	Environment string
	CompanyID   string
	Auth        AuthConfig
}

type AuthConfig struct {
	Type     string
	Username string
	Secret   string
	TokenURL string
	ClientID string
	Scope    string
}

// FetchParams: Top=0 - без ограничения; FilterField/FilterValue - выборка по бизнес-ключу.
type FetchParams struct {
	Top         int
	FilterField string
	FilterValue string
}

// ConfigFromTenant собирает Config из записи справочника компаний и расшифрованного секрета.
func ConfigFromTenant(c entities.BCConnection, secret string) Config {
	return Config{
		BaseURL:     c.BaseURL,
		Environment: c.Environment,
		CompanyID:   c.CompanyID,
		Auth: AuthConfig{
			Type:     c.AuthType,
			Username: c.Username,
			Secret:   secret,
			TokenURL: c.TokenURL,
			ClientID: c.ClientID,
			Scope:    c.Scope,
		},
	}
}

// Validate проверяет, что конфиг пригоден для вызова.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("не задан адрес Business Central")
	}
	u, err := url.Parse(c.baseURL())
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("неверный адрес Business Central %q", c.BaseURL)
	}
	if c.CompanyID == "" {
		return fmt.Errorf("не задан идентификатор компании в Business Central")
	}
	switch c.Auth.Type {
	case entities.BCAuthBasic, "":
		if c.Auth.Username == "" || c.Auth.Secret == "" {
			return fmt.Errorf("не заданы логин или ключ веб-сервиса")
		}
	case entities.BCAuthOAuth2:
		if c.Auth.TokenURL == "" || c.Auth.ClientID == "" || c.Auth.Secret == "" {
			return fmt.Errorf("не заданы параметры OAuth2")
		}
	default:
		return fmt.Errorf("неизвестный тип аутентификации %q", c.Auth.Type)
	}
	return nil
}

// Fingerprint меняется при любом изменении параметров подключения.
func (c Config) Fingerprint() string {
	h := sha256.New()
	for _, part := range []string{
		c.BaseURL, c.Environment, c.CompanyID,
		c.Auth.Type, c.Auth.Username, c.Auth.Secret, c.Auth.TokenURL, c.Auth.ClientID, c.Auth.Scope,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (c Config) baseURL() string {
	base := strings.TrimRight(c.BaseURL, "/")
	return strings.ReplaceAll(base, "{environment}", c.Environment)
}

func (c Config) resourceURL(resource string) string {
	return fmt.Sprintf("%s/companies(%s)/%s", c.baseURL(), c.CompanyID, resource)
}
