package contextkeys

// Ключи echo.Context.
const (
	TenantContextKey = "tenant_context"
)
