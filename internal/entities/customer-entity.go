package entities

import (
	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"

	"business-api/pkg/types"
)

// Customer - клиент, зеркалируемый из Business Central (ресурс customers).
type Customer struct {
	ID              int64           `json:"id"`
	ExternalID      null.String     `json:"external_id"`
	Number          string          `json:"number"`
	DisplayName     string          `json:"display_name"`
	Email           null.String     `json:"email"`
	PhoneNumber     null.String     `json:"phone_number"`
	AddressLine1    null.String     `json:"address_line1"`
	City            null.String     `json:"city"`
	Country         null.String     `json:"country"`
	PostalCode      null.String     `json:"postal_code"`
	PaymentTermsID  null.String     `json:"payment_terms_id"`
	CurrencyCode    null.String     `json:"currency_code"`
	Blocked         null.String     `json:"blocked"`
	Balance         decimal.Decimal `json:"balance"`
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	RemoteUpdatedAt null.Time       `json:"remote_updated_at"`

	types.BaseEntity
}

func (e *Customer) LocalID() int64 { return e.ID }

func (e *Customer) SetLocalID(id int64) { e.ID = id }
