package entities

import (
	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"

	"business-api/pkg/types"
)

// PaymentTerm - условия оплаты из Business Central (ресурс paymentTerms).
type PaymentTerm struct {
	ID                    int64           `json:"id"`
	ExternalID            null.String     `json:"external_id"`
	Code                  string          `json:"code"`
	DisplayName           string          `json:"display_name"`
	DueDateCalculation    null.String     `json:"due_date_calculation"`
	DiscountDateCalc      null.String     `json:"discount_date_calculation"`
	DiscountPercent       decimal.Decimal `json:"discount_percent"`
	CalculateDiscountOnCM bool            `json:"calculate_discount_on_credit_memos"`
	RemoteUpdatedAt       null.Time       `json:"remote_updated_at"`

	types.BaseEntity
}

func (e *PaymentTerm) LocalID() int64 { return e.ID }

func (e *PaymentTerm) SetLocalID(id int64) { e.ID = id }
