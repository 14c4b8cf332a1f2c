package utils

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "business-api/pkg/errors"
)

type HttpResponse struct {
	Status  bool        `json:"status"`
	Body    interface{} `json:"body,omitempty"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func SuccessResponse(ctx echo.Context, body interface{}, message string, code int) error {
	return ctx.JSON(code, &HttpResponse{
		Status:  true,
		Body:    body,
		Message: message,
	})
}

// ErrorResponse переводит ошибку в HttpError по таксономии и отдаёт клиенту.
// 5xx логируются как ошибки, остальное - как предупреждения.
func ErrorResponse(ctx echo.Context, err error, logger *zap.Logger) error {
	httpErr := apperrors.ToHttpError(err)

	fields := []zap.Field{
		zap.Int("code", httpErr.Code),
		zap.String("method", ctx.Request().Method),
		zap.String("uri", ctx.Request().RequestURI),
		zap.Error(err),
	}
	if httpErr.Code >= http.StatusInternalServerError {
		logger.Error("Запрос завершился ошибкой", fields...)
	} else {
		logger.Warn("Запрос отклонён", fields...)
	}

	var details interface{}
	if len(httpErr.Details) > 0 {
		details = httpErr.Details
	}
	return ctx.JSON(httpErr.Code, &HttpResponse{
		Status:  false,
		Body:    struct{}{},
		Message: httpErr.Message,
		Details: details,
	})
}
