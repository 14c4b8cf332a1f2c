package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"business-api/internal/dto"
	"business-api/internal/entities"
	"business-api/internal/repositories"
	"business-api/internal/scheduling"
	"business-api/internal/sync"
	"business-api/internal/tenancy"
	"business-api/pkg/config"
	apperrors "business-api/pkg/errors"
)

type fakeConn struct {
	repositories.Conn
	released *atomic.Int32
}

func (c fakeConn) Release() { c.released.Add(1) }

type fakeResolver struct {
	released  atomic.Int32
	full      atomic.Int32
	dbOnly    atomic.Int32
	knownCode string
}

func (r *fakeResolver) lease(code string) (*tenancy.TenantContext, error) {
	if tenancy.NormalizeCode(code) != r.knownCode {
		return nil, apperrors.ErrTenantNotFound
	}
	return tenancy.NewTenantContext(r.knownCode, fakeConn{released: &r.released}, nil), nil
}

func (r *fakeResolver) Resolve(_ context.Context, code string) (*tenancy.TenantContext, error) {
	r.full.Add(1)
	return r.lease(code)
}

func (r *fakeResolver) ResolveDB(_ context.Context, code string) (*tenancy.DBLease, error) {
	r.dbOnly.Add(1)
	tc, err := r.lease(code)
	if err != nil {
		return nil, err
	}
	return tc.DB, nil
}

type fakeSyncService struct {
	calls atomic.Int32
	fn    func(resource string) (*sync.Report, error)
}

func (s *fakeSyncService) SyncAll(_ context.Context, _ *tenancy.TenantContext, resource string) (*sync.Report, error) {
	s.calls.Add(1)
	return s.fn(resource)
}

func (s *fakeSyncService) SyncOne(_ context.Context, _ *tenancy.TenantContext, resource, _ string) (*sync.Report, error) {
	s.calls.Add(1)
	return s.fn(resource)
}

func (s *fakeSyncService) Resources() []string { return []string{"customers"} }

type fakeBookingService struct {
	decision *scheduling.Decision
	err      error
	sawTC    atomic.Bool
}

func (s *fakeBookingService) Validate(_ context.Context, tc *tenancy.TenantContext, _ dto.BookingCheckDTO) (*scheduling.Decision, error) {
	s.sawTC.Store(tc != nil && tc.ERP == nil)
	return s.decision, s.err
}

func (s *fakeBookingService) Reserve(_ context.Context, _ *tenancy.TenantContext, req dto.BookingReserveDTO) (*entities.Booking, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &entities.Booking{ID: 1, EquipmentID: req.EquipmentID}, nil
}

type fakeTenantService struct{ invalidated []string }

func (s *fakeTenantService) Invalidate(_ context.Context, code string) error {
	s.invalidated = append(s.invalidated, code)
	return nil
}

type harness struct {
	e        *echo.Echo
	resolver *fakeResolver
	syncs    *fakeSyncService
	bookings *fakeBookingService
	tenants  *fakeTenantService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		resolver: &fakeResolver{knownCode: "acme"},
		syncs: &fakeSyncService{fn: func(resource string) (*sync.Report, error) {
			return &sync.Report{Resource: resource, Created: 1}, nil
		}},
		bookings: &fakeBookingService{decision: &scheduling.Decision{Allowed: true, Conflicts: []entities.Booking{}}},
		tenants:  &fakeTenantService{},
	}
	cfg := &config.Config{Server: config.ServerConfig{RequestTimeout: time.Second, AdminAPIKey: "admin-key"}}
	logger := zap.NewNop()
	h.e = NewEcho(logger)
	InitRouter(h.e, Services{
		Resolver: h.resolver,
		Sync:     h.syncs,
		Booking:  h.bookings,
		Tenant:   h.tenants,
		Gatherer: prometheus.NewRegistry(),
	}, cfg, logger)
	return h
}

func (h *harness) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSyncRoute_ReleasesTenantOnSuccess(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/ACME/sync/customers", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["status"])
	assert.Equal(t, int32(1), h.resolver.full.Load())
	assert.Equal(t, int32(1), h.resolver.released.Load())
}

func TestSyncRoute_ReleasesTenantOnError(t *testing.T) {
	h := newHarness(t)
	h.syncs.fn = func(resource string) (*sync.Report, error) {
		return nil, &apperrors.ExternalSystemError{Resource: resource, Attempts: 4, Unavailable: true}
	}

	rec := h.do(http.MethodPost, "/api/acme/sync/customers/C0001", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, int32(1), h.resolver.released.Load())
}

func TestSyncRoute_ReleasesTenantOnPanic(t *testing.T) {
	h := newHarness(t)
	h.syncs.fn = func(string) (*sync.Report, error) { panic("boom") }

	rec := h.do(http.MethodPost, "/api/acme/sync/customers", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, int32(1), h.resolver.released.Load())
}

func TestSyncRoute_UnknownTenant(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/nobody/sync/customers", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, int32(0), h.syncs.calls.Load())
	assert.Equal(t, int32(0), h.resolver.released.Load())
}

func TestSyncResources_RequireKnownTenant(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/nobody/sync", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/api/acme/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"customers"}, decode(t, rec)["body"])
	assert.Equal(t, int32(0), h.resolver.full.Load())
	assert.Equal(t, int32(1), h.resolver.released.Load())
}

func TestSyncRoute_MapsTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"unknown resource", apperrors.NewValidationError("entity", "неизвестный ресурс"), http.StatusBadRequest},
		{"connection", apperrors.NewTenantConnectionError("acme", apperrors.PartERP, assert.AnError), http.StatusServiceUnavailable},
		{"data quality", apperrors.NewDataQualityError("customers", "C1", 0, "нет id"), http.StatusUnprocessableEntity},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unexpected", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.syncs.fn = func(string) (*sync.Report, error) { return nil, tc.err }

			rec := h.do(http.MethodPost, "/api/acme/sync/customers/C1", "")
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, false, decode(t, rec)["status"])
			assert.Equal(t, int32(1), h.resolver.released.Load())
		})
	}
}

func TestBookingRoutes_UseDatabaseOnly(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/acme/bookings/validate",
		`{"equipment_id": 7, "start_date": "2024-05-10", "end_date": "2024-05-12"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(0), h.resolver.full.Load())
	assert.Equal(t, int32(1), h.resolver.dbOnly.Load())
	assert.Equal(t, int32(1), h.resolver.released.Load())
	assert.True(t, h.bookings.sawTC.Load())
}

func TestBookingValidate_RejectsBadInput(t *testing.T) {
	h := newHarness(t)

	for _, body := range []string{
		`{"equipment_id": 7, "start_date": "10.05.2024", "end_date": "2024-05-12"}`,
		`{"start_date": "2024-05-10", "end_date": "2024-05-12"}`,
		`{"equipment_id": `,
	} {
		rec := h.do(http.MethodPost, "/api/acme/bookings/validate", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Equal(t, int32(3), h.resolver.released.Load())
}

func TestBookingValidate_ReportsConflictsWithOK(t *testing.T) {
	h := newHarness(t)
	h.bookings.decision = &scheduling.Decision{
		Allowed:   false,
		Conflicts: []entities.Booking{{ID: 3, EquipmentID: 7}},
	}

	rec := h.do(http.MethodPost, "/api/acme/bookings/validate",
		`{"equipment_id": 7, "start_date": "2024-05-10", "end_date": "2024-05-12"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)["body"].(map[string]interface{})
	assert.Equal(t, false, body["allowed"])
	assert.Len(t, body["conflicts"], 1)
}

func TestBookingReserve_ConflictIs409(t *testing.T) {
	h := newHarness(t)
	h.bookings.err = &apperrors.ConflictError{EquipmentID: 7, Conflicts: []entities.Booking{{ID: 3}}, Count: 1}

	rec := h.do(http.MethodPost, "/api/acme/bookings",
		`{"equipment_id": 7, "request_id": 11, "start_date": "2024-05-10", "end_date": "2024-05-12"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotNil(t, decode(t, rec)["details"])
}

func TestBookingReserve_Created(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/acme/bookings",
		`{"equipment_id": 7, "request_id": 11, "start_date": "2024-05-10", "end_date": "2024-05-12"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAdminInvalidate_RequiresKey(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/admin/tenants/acme/invalidate", "", echo.HeaderAuthorization, "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, h.tenants.invalidated)

	rec = h.do(http.MethodPost, "/api/admin/tenants/acme/invalidate", "", echo.HeaderAuthorization, "Bearer admin-key")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"acme"}, h.tenants.invalidated)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/metrics", "").Code)
}
