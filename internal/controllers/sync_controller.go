// Файл: internal/controllers/sync_controller.go
package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"business-api/internal/services"
	apperrors "business-api/pkg/errors"
	"business-api/pkg/middleware"
	"business-api/pkg/utils"
)

type SyncController struct {
	syncService services.SyncServiceInterface
	logger      *zap.Logger
}

func NewSyncController(service services.SyncServiceInterface, logger *zap.Logger) *SyncController {
	return &SyncController{
		syncService: service,
		logger:      logger.Named("sync_controller"),
	}
}

// SyncAll - POST /api/:company/sync/:entity
func (c *SyncController) SyncAll(ctx echo.Context) error {
	tc, ok := middleware.TenantFrom(ctx)
	if !ok {
		return utils.ErrorResponse(ctx, apperrors.ErrTenantNotFound, c.logger)
	}
	report, err := c.syncService.SyncAll(ctx.Request().Context(), tc, ctx.Param("entity"))
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, report, "Синхронизация завершена", http.StatusOK)
}

// SyncOne - POST /api/:company/sync/:entity/:key
func (c *SyncController) SyncOne(ctx echo.Context) error {
	tc, ok := middleware.TenantFrom(ctx)
	if !ok {
		return utils.ErrorResponse(ctx, apperrors.ErrTenantNotFound, c.logger)
	}
	report, err := c.syncService.SyncOne(ctx.Request().Context(), tc, ctx.Param("entity"), ctx.Param("key"))
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, report, "Запись синхронизирована", http.StatusOK)
}

func (c *SyncController) Resources(ctx echo.Context) error {
	return utils.SuccessResponse(ctx, c.syncService.Resources(), "Успешно", http.StatusOK)
}
