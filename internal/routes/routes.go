package routes

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"business-api/internal/services"
	"business-api/pkg/config"
	apperrors "business-api/pkg/errors"
	"business-api/pkg/middleware"
	"business-api/pkg/utils"
)

// Services - всё, что нужно роутерам. Собирается в cmd.
type Services struct {
	Resolver middleware.TenantResolver
	Sync     services.SyncServiceInterface
	Booking  services.BookingServiceInterface
	Tenant   services.TenantServiceInterface
	Gatherer prometheus.Gatherer
}

// NewEcho создаёт сервер с общими middleware: recover, request id, журнал запросов и валидатор.
func NewEcho(logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("Паника в обработчике",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
				_ = utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLog(logger))

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	e.Validator = utils.NewValidator(v)
	return e
}

func InitRouter(e *echo.Echo, svc Services, cfg *config.Config, logger *zap.Logger) {
	logger.Info("InitRouter: создание маршрутов")

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if svc.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	tenantMW := middleware.NewTenantMiddleware(svc.Resolver, cfg.Server.RequestTimeout, logger)

	runAdminRouter(api, svc.Tenant, cfg.Server.AdminAPIKey, logger)

	company := api.Group("/:company")
	runSyncRouter(company, svc.Sync, tenantMW, logger)
	runBookingRouter(company, svc.Booking, tenantMW, logger)

	logger.Info("InitRouter: маршруты созданы")
}
