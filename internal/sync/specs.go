package sync

import (
	"fmt"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"

	"business-api/internal/entities"
	"business-api/internal/integrations/bc"
)

// validGUID: Business Central выдаёт SystemId в виде GUID.
func validGUID(id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return fmt.Errorf("идентификатор %q не является GUID", id)
	}
	return nil
}

func stringOrNull(s string) null.String {
	s = strings.TrimSpace(s)
	if s == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}

// CustomerSpec - клиенты, бизнес-ключ number.
func CustomerSpec() EntitySpec[bc.CustomerDTO, *entities.Customer] {
	return EntitySpec[bc.CustomerDTO, *entities.Customer]{
		Resource:    bc.ResourceCustomers,
		KeyField:    "number",
		StableID:    func(r bc.CustomerDTO) string { return r.ID },
		BusinessKey: func(r bc.CustomerDTO) string { return r.Number },
		Validate: func(r bc.CustomerDTO) error {
			if err := validGUID(r.ID); err != nil {
				return err
			}
			if strings.TrimSpace(r.Number) == "" {
				return fmt.Errorf("пустой номер клиента")
			}
			return nil
		},
		Merge: func(existing *entities.Customer, r bc.CustomerDTO) *entities.Customer {
			c := &entities.Customer{}
			if existing != nil {
				copied := *existing
				c = &copied
			}
			c.ExternalID = null.StringFrom(strings.ToLower(strings.TrimSpace(r.ID)))
			c.Number = strings.TrimSpace(r.Number)
			c.DisplayName = r.DisplayName
			c.Email = stringOrNull(r.Email)
			c.PhoneNumber = stringOrNull(r.PhoneNumber)
			c.AddressLine1 = stringOrNull(r.AddressLine1)
			c.City = stringOrNull(r.City)
			c.Country = stringOrNull(r.Country)
			c.PostalCode = stringOrNull(r.PostalCode)
			c.PaymentTermsID = stringOrNull(r.PaymentTermsID)
			c.CurrencyCode = stringOrNull(r.CurrencyCode)
			c.Blocked = stringOrNull(r.Blocked)
			c.Balance = r.BalanceDue
			c.CreditLimit = r.CreditLimit
			c.RemoteUpdatedAt = null.TimeFromPtr(r.LastModifiedDateTime)
			return c
		},
	}
}

// PaymentTermSpec - условия оплаты, бизнес-ключ code.
func PaymentTermSpec() EntitySpec[bc.PaymentTermDTO, *entities.PaymentTerm] {
	return EntitySpec[bc.PaymentTermDTO, *entities.PaymentTerm]{
		Resource:    bc.ResourcePaymentTerms,
		KeyField:    "code",
		StableID:    func(r bc.PaymentTermDTO) string { return r.ID },
		BusinessKey: func(r bc.PaymentTermDTO) string { return r.Code },
		Validate: func(r bc.PaymentTermDTO) error {
			if err := validGUID(r.ID); err != nil {
				return err
			}
			if strings.TrimSpace(r.Code) == "" {
				return fmt.Errorf("пустой код условий оплаты")
			}
			return nil
		},
		Merge: func(existing *entities.PaymentTerm, r bc.PaymentTermDTO) *entities.PaymentTerm {
			p := &entities.PaymentTerm{}
			if existing != nil {
				copied := *existing
				p = &copied
			}
			p.ExternalID = null.StringFrom(strings.ToLower(strings.TrimSpace(r.ID)))
			p.Code = strings.TrimSpace(r.Code)
			p.DisplayName = r.DisplayName
			p.DueDateCalculation = stringOrNull(r.DueDateCalculation)
			p.DiscountDateCalc = stringOrNull(r.DiscountDateCalculation)
			p.DiscountPercent = r.DiscountPercent
			p.CalculateDiscountOnCM = r.CalculateDiscountOnCreditMemos
			p.RemoteUpdatedAt = null.TimeFromPtr(r.LastModifiedDateTime)
			return p
		},
	}
}

// EquipmentSpec - оборудование, бизнес-ключ number.
func EquipmentSpec() EntitySpec[bc.EquipmentDTO, *entities.Equipment] {
	return EntitySpec[bc.EquipmentDTO, *entities.Equipment]{
		Resource:    bc.ResourceEquipment,
		KeyField:    "number",
		StableID:    func(r bc.EquipmentDTO) string { return r.ID },
		BusinessKey: func(r bc.EquipmentDTO) string { return r.Number },
		Validate: func(r bc.EquipmentDTO) error {
			if err := validGUID(r.ID); err != nil {
				return err
			}
			if strings.TrimSpace(r.Number) == "" {
				return fmt.Errorf("пустой номер оборудования")
			}
			return nil
		},
		Merge: func(existing *entities.Equipment, r bc.EquipmentDTO) *entities.Equipment {
			eq := &entities.Equipment{}
			if existing != nil {
				copied := *existing
				eq = &copied
			}
			eq.ExternalID = null.StringFrom(strings.ToLower(strings.TrimSpace(r.ID)))
			eq.Number = strings.TrimSpace(r.Number)
			eq.DisplayName = r.DisplayName
			eq.Category = stringOrNull(r.Category)
			eq.SerialNumber = stringOrNull(r.SerialNumber)
			eq.Blocked = r.Blocked
			eq.RemoteUpdatedAt = null.TimeFromPtr(r.LastModifiedDateTime)
			return eq
		},
	}
}
