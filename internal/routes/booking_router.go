package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"business-api/internal/controllers"
	"business-api/internal/services"
	"business-api/pkg/middleware"
)

// Бронированию достаточно БД компании: недоступный ERP его не блокирует.
func runBookingRouter(company *echo.Group, bookingService services.BookingServiceInterface, tenantMW *middleware.TenantMiddleware, logger *zap.Logger) {
	ctrl := controllers.NewBookingController(bookingService, logger)

	bookings := company.Group("/bookings", tenantMW.DBOnly)
	bookings.POST("/validate", ctrl.Validate)
	bookings.POST("", ctrl.Reserve)
}
