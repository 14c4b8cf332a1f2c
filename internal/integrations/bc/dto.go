package bc

import (
	"time"

	"github.com/shopspring/decimal"
)

// Имена ресурсов API Business Central.
const (
	ResourceCustomers    = "customers"
	ResourcePaymentTerms = "paymentTerms"
	ResourceEquipment    = "equipment"
)

// CustomerDTO - клиент в формате API v2.0.
type CustomerDTO struct {
	ID                   string          `json:"id"`
	Number               string          `json:"number"`
	DisplayName          string          `json:"displayName"`
	Email                string          `json:"email"`
	PhoneNumber          string          `json:"phoneNumber"`
	AddressLine1         string          `json:"addressLine1"`
	City                 string          `json:"city"`
	Country              string          `json:"country"`
	PostalCode           string          `json:"postalCode"`
	PaymentTermsID       string          `json:"paymentTermsId"`
	CurrencyCode         string          `json:"currencyCode"`
	Blocked              string          `json:"blocked"`
	BalanceDue           decimal.Decimal `json:"balanceDue"`
	CreditLimit          decimal.Decimal `json:"creditLimit"`
	LastModifiedDateTime *time.Time      `json:"lastModifiedDateTime"`
}

type PaymentTermDTO struct {
	ID                             string          `json:"id"`
	Code                           string          `json:"code"`
	DisplayName                    string          `json:"displayName"`
	DueDateCalculation             string          `json:"dueDateCalculation"`
	DiscountDateCalculation        string          `json:"discountDateCalculation"`
	DiscountPercent                decimal.Decimal `json:"discountPercent"`
	CalculateDiscountOnCreditMemos bool            `json:"calculateDiscountOnCreditMemos"`
	LastModifiedDateTime           *time.Time      `json:"lastModifiedDateTime"`
}

// EquipmentDTO - оборудование из пользовательской API-страницы.
type EquipmentDTO struct {
	ID                   string     `json:"id"`
	Number               string     `json:"number"`
	DisplayName          string     `json:"displayName"`
	Category             string     `json:"category"`
	SerialNumber         string     `json:"serialNumber"`
	Blocked              bool       `json:"blocked"`
	LastModifiedDateTime *time.Time `json:"lastModifiedDateTime"`
}
