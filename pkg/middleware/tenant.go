package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"business-api/internal/tenancy"
	"business-api/pkg/contextkeys"
	apperrors "business-api/pkg/errors"
	"business-api/pkg/utils"
)

type TenantResolver interface {
	Resolve(ctx context.Context, code string) (*tenancy.TenantContext, error)
	ResolveDB(ctx context.Context, code string) (*tenancy.DBLease, error)
}

// TenantMiddleware резолвит компанию из пути и освобождает её ресурсы после обработчика
// на любом пути выхода, включая панику.
type TenantMiddleware struct {
	resolver TenantResolver
	timeout  time.Duration
	logger   *zap.Logger
}

func NewTenantMiddleware(resolver TenantResolver, timeout time.Duration, logger *zap.Logger) *TenantMiddleware {
	return &TenantMiddleware{resolver: resolver, timeout: timeout, logger: logger.Named("tenant_mw")}
}

// Full - БД и ERP.
func (m *TenantMiddleware) Full(next echo.HandlerFunc) echo.HandlerFunc {
	return m.handle(next, func(ctx context.Context, code string) (*tenancy.TenantContext, error) {
		return m.resolver.Resolve(ctx, code)
	})
}

// DBOnly - только БД: ERP компании может быть недоступен, а такие маршруты работают.
func (m *TenantMiddleware) DBOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return m.handle(next, func(ctx context.Context, code string) (*tenancy.TenantContext, error) {
		lease, err := m.resolver.ResolveDB(ctx, code)
		if err != nil {
			return nil, err
		}
		return &tenancy.TenantContext{Company: lease.Company(), DB: lease}, nil
	})
}

func (m *TenantMiddleware) handle(next echo.HandlerFunc, resolve func(context.Context, string) (*tenancy.TenantContext, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		code := c.Param("company")
		if code == "" {
			return utils.ErrorResponse(c, apperrors.ErrTenantNotFound, m.logger)
		}

		ctx, cancel := utils.Ctx(c, m.timeout)
		defer cancel()

		tc, err := resolve(ctx, code)
		if err != nil {
			return utils.ErrorResponse(c, err, m.logger)
		}
		defer tc.Release()

		c.SetRequest(c.Request().WithContext(ctx))
		c.Set(contextkeys.TenantContextKey, tc)
		return next(c)
	}
}

// TenantFrom достаёт контекст компании, положенный мидлвэром.
func TenantFrom(c echo.Context) (*tenancy.TenantContext, bool) {
	tc, ok := c.Get(contextkeys.TenantContextKey).(*tenancy.TenantContext)
	return tc, ok && tc != nil
}
