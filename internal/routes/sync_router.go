// Файл: internal/routes/sync_router.go
package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"business-api/internal/controllers"
	"business-api/internal/services"
	"business-api/pkg/middleware"
)

// Синхронизации нужны и БД, и ERP компании. Список ресурсов проверяет только, что компания есть.
func runSyncRouter(company *echo.Group, syncService services.SyncServiceInterface, tenantMW *middleware.TenantMiddleware, logger *zap.Logger) {
	ctrl := controllers.NewSyncController(syncService, logger)

	company.GET("/sync", ctrl.Resources, tenantMW.DBOnly)

	syncGroup := company.Group("/sync", tenantMW.Full)
	syncGroup.POST("/:entity", ctrl.SyncAll)
	syncGroup.POST("/:entity/:key", ctrl.SyncOne)
}
