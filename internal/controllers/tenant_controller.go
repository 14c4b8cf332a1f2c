package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"business-api/internal/services"
	"business-api/pkg/utils"
)

type TenantController struct {
	tenantService services.TenantServiceInterface
	logger        *zap.Logger
}

func NewTenantController(service services.TenantServiceInterface, logger *zap.Logger) *TenantController {
	return &TenantController{tenantService: service, logger: logger.Named("tenant_controller")}
}

// Invalidate - POST /api/admin/tenants/:company/invalidate
func (c *TenantController) Invalidate(ctx echo.Context) error {
	if err := c.tenantService.Invalidate(ctx.Request().Context(), ctx.Param("company")); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Кеш компании сброшен", http.StatusOK)
}
