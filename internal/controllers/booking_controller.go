package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"business-api/internal/dto"
	"business-api/internal/services"
	apperrors "business-api/pkg/errors"
	"business-api/pkg/middleware"
	"business-api/pkg/utils"
)

type BookingController struct {
	bookingService services.BookingServiceInterface
	logger         *zap.Logger
}

func NewBookingController(service services.BookingServiceInterface, logger *zap.Logger) *BookingController {
	return &BookingController{
		bookingService: service,
		logger:         logger.Named("booking_controller"),
	}
}

func bindAndValidate(ctx echo.Context, dst interface{}) error {
	if err := ctx.Bind(dst); err != nil {
		return apperrors.NewHttpError(http.StatusBadRequest, "Неверный формат JSON", err, nil)
	}
	return ctx.Validate(dst)
}

// Validate - POST /api/:company/bookings/validate. Ответ 200 и при конфликте: allowed=false со списком.
func (c *BookingController) Validate(ctx echo.Context) error {
	tc, ok := middleware.TenantFrom(ctx)
	if !ok {
		return utils.ErrorResponse(ctx, apperrors.ErrTenantNotFound, c.logger)
	}
	var req dto.BookingCheckDTO
	if err := bindAndValidate(ctx, &req); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	decision, err := c.bookingService.Validate(ctx.Request().Context(), tc, req)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	msg := "Период свободен"
	if !decision.Allowed {
		msg = "Период пересекается с существующими бронированиями"
	}
	return utils.SuccessResponse(ctx, decision, msg, http.StatusOK)
}

// Reserve - POST /api/:company/bookings. При конфликте 409.
func (c *BookingController) Reserve(ctx echo.Context) error {
	tc, ok := middleware.TenantFrom(ctx)
	if !ok {
		return utils.ErrorResponse(ctx, apperrors.ErrTenantNotFound, c.logger)
	}
	var req dto.BookingReserveDTO
	if err := bindAndValidate(ctx, &req); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	booking, err := c.bookingService.Reserve(ctx.Request().Context(), tc, req)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, booking, "Оборудование забронировано", http.StatusCreated)
}
