package errors

import (
	"context"
	"errors"
	"net/http"
)

// HttpError - ошибка, готовая для отдачи клиенту.
type HttpError struct {
	Code    int                    `json:"-"`
	Message string                 `json:"message"`
	Err     error                  `json:"-"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func NewHttpError(code int, message string, err error, details map[string]interface{}) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err, Details: details}
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

// ToHttpError переводит доменную ошибку в HTTP-код по таксономии.
// Неизвестные ошибки становятся 500 без раскрытия деталей.
func ToHttpError(err error) *HttpError {
	var httpErr *HttpError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var (
		validationErr *ValidationError
		conflictErr   *ConflictError
		dataErr       *DataQualityError
		connErr       *TenantConnectionError
		extErr        *ExternalSystemError
	)

	switch {
	case errors.Is(err, ErrTenantNotFound):
		return NewHttpError(http.StatusNotFound, "Компания не найдена", err, nil)
	case errors.As(err, &connErr):
		return NewHttpError(http.StatusServiceUnavailable, "Подключение компании недоступно или настроено неверно", err,
			map[string]interface{}{"part": connErr.Part})
	case errors.As(err, &extErr) && extErr.Unavailable:
		return NewHttpError(http.StatusBadGateway, "Business Central недоступен", err,
			map[string]interface{}{"resource": extErr.Resource, "attempts": extErr.Attempts})
	case errors.As(err, &extErr):
		return NewHttpError(http.StatusBadGateway, "Business Central вернул ошибку", err,
			map[string]interface{}{"resource": extErr.Resource, "status": extErr.StatusCode})
	case errors.As(err, &dataErr):
		return NewHttpError(http.StatusUnprocessableEntity, "Запись из Business Central не может быть синхронизирована", err,
			map[string]interface{}{"key": dataErr.BusinessKey, "reason": dataErr.Reason})
	case errors.As(err, &validationErr):
		return NewHttpError(http.StatusBadRequest, validationErr.Error(), err, nil)
	case errors.As(err, &conflictErr):
		return NewHttpError(http.StatusConflict, conflictErr.Error(), err,
			map[string]interface{}{"conflicts": conflictErr.Conflicts})
	case errors.Is(err, ErrNotFound):
		return NewHttpError(http.StatusNotFound, "Запись не найдена", err, nil)
	case errors.Is(err, context.DeadlineExceeded):
		return NewHttpError(http.StatusGatewayTimeout, "Превышено время обработки запроса", err, nil)
	case errors.Is(err, ErrBadRequest):
		return NewHttpError(http.StatusBadRequest, "Неверный запрос", err, nil)
	}
	return NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
}
