package routes

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"business-api/internal/controllers"
	"business-api/internal/services"
)

func runAdminRouter(api *echo.Group, tenantService services.TenantServiceInterface, apiKey string, logger *zap.Logger) {
	ctrl := controllers.NewTenantController(tenantService, logger)

	admin := api.Group("/admin")
	if apiKey == "" {
		logger.Warn("ADMIN_API_KEY не задан, административные маршруты отключены")
		return
	}
	admin.Use(echomw.KeyAuth(func(key string, c echo.Context) (bool, error) {
		return subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1, nil
	}))

	admin.POST("/tenants/:company/invalidate", ctrl.Invalidate)
}
