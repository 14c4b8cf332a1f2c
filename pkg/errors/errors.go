package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Тенанты
	ErrTenantNotFound   = fmt.Errorf("компания не найдена")
	ErrTenantConnection = fmt.Errorf("не удалось установить соединение для компании")

	// Внешняя система (Business Central)
	ErrExternalSystemUnavailable = fmt.Errorf("внешняя система недоступна")
	ErrExternalSystem            = fmt.Errorf("ошибка внешней системы")

	// Данные
	ErrDataQuality = fmt.Errorf("некачественные данные из внешней системы")
	ErrValidation  = fmt.Errorf("ошибка валидации")
	ErrConflict    = fmt.Errorf("конфликт бронирования")

	// Общие
	ErrNotFound   = fmt.Errorf("запись не найдена")
	ErrBadRequest = fmt.Errorf("неверный запрос")
)

// Части тенанта, которые резолвятся независимо друг от друга.
const (
	PartDatabase = "database"
	PartERP      = "erp"
)

// TenantConnectionError - компания известна, но её БД или ERP недоступны/настроены неверно.
type TenantConnectionError struct {
	Company string
	Part    string
	Err     error
}

func NewTenantConnectionError(company, part string, err error) error {
	return &TenantConnectionError{Company: company, Part: part, Err: err}
}

func (e *TenantConnectionError) Error() string {
	return fmt.Sprintf("компания %q: ошибка подключения (%s): %v", e.Company, e.Part, e.Err)
}

func (e *TenantConnectionError) Unwrap() error { return e.Err }

func (e *TenantConnectionError) Is(target error) bool { return target == ErrTenantConnection }

// ExternalSystemError описывает неуспешный вызов ERP.
// Unavailable выставляется, когда исчерпаны повторы по сетевым/временным сбоям.
type ExternalSystemError struct {
	Resource    string
	Attempts    int
	StatusCode  int
	Unavailable bool
	Err         error
}

func (e *ExternalSystemError) Error() string {
	var b strings.Builder
	if e.Unavailable {
		b.WriteString("внешняя система недоступна")
	} else {
		b.WriteString("ошибка внешней системы")
	}
	fmt.Fprintf(&b, ": ресурс %q", e.Resource)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ", статус %d", e.StatusCode)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, ", попыток %d", e.Attempts)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ExternalSystemError) Unwrap() error { return e.Err }

func (e *ExternalSystemError) Is(target error) bool {
	if target == ErrExternalSystem {
		return true
	}
	return e.Unavailable && target == ErrExternalSystemUnavailable
}

// DataQualityError - запись из ERP, которую невозможно сопоставить или слить с локальной.
type DataQualityError struct {
	Resource    string `json:"resource"`
	BusinessKey string `json:"business_key"`
	Index       int    `json:"index"`
	Reason      string `json:"reason"`
}

func NewDataQualityError(resource, businessKey string, index int, reason string) *DataQualityError {
	return &DataQualityError{Resource: resource, BusinessKey: businessKey, Index: index, Reason: reason}
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("%s[%d] (ключ %q): %s", e.Resource, e.Index, e.BusinessKey, e.Reason)
}

func (e *DataQualityError) Is(target error) bool { return target == ErrDataQuality }

// ValidationError - входные данные нарушают предусловие операции.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError несёт полный набор пересекающихся бронирований.
type ConflictError struct {
	EquipmentID int64
	Conflicts   interface{}
	Count       int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("оборудование %d уже забронировано на этот период (конфликтов: %d)", e.EquipmentID, e.Count)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// As - обёртка, чтобы не импортировать стандартный errors рядом с apperrors.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is - обёртка над стандартным errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }
