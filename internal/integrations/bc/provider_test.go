package bc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"business-api/internal/entities"
	apperrors "business-api/pkg/errors"
)

func newTestAdapter(retries uint64) *Adapter {
	return NewAdapter(Options{
		HTTPTimeout: 2 * time.Second,
		MaxRetries:  retries,
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
	}, nil, zap.NewNop())
}

func basicConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		CompanyID: "c0ffee00-0000-0000-0000-000000000001",
		Auth:      AuthConfig{Type: entities.BCAuthBasic, Username: "svc", Secret: "key"},
	}
}

func writePage(w http.ResponseWriter, items []map[string]interface{}, next string) {
	w.Header().Set("Content-Type", "application/json")
	body := map[string]interface{}{"value": items}
	if next != "" {
		body["@odata.nextLink"] = next
	}
	_ = json.NewEncoder(w).Encode(body)
}

func TestAdapter_FetchBuildsODataQuery(t *testing.T) {
	var gotPath, gotFilter, gotTop, gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFilter = r.URL.Query().Get("$filter")
		gotTop = r.URL.Query().Get("$top")
		gotUser, gotPass, _ = r.BasicAuth()
		writePage(w, []map[string]interface{}{{"id": "a", "number": "C'01"}}, "")
	}))
	defer srv.Close()

	items, err := newTestAdapter(0).Fetch(context.Background(), basicConfig(srv.URL), ResourceCustomers,
		FetchParams{Top: 1, FilterField: "number", FilterValue: "C'01"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "/companies(c0ffee00-0000-0000-0000-000000000001)/customers", gotPath)
	assert.Equal(t, "number eq 'C''01'", gotFilter, "кавычки в значении удваиваются")
	assert.Equal(t, "1", gotTop)
	assert.Equal(t, "svc", gotUser)
	assert.Equal(t, "key", gotPass)
}

func TestAdapter_RejectsUnsafeFilterField(t *testing.T) {
	_, err := newTestAdapter(0).Fetch(context.Background(), basicConfig("http://bc.local"), ResourceCustomers,
		FetchParams{FilterField: "number or 1 eq 1", FilterValue: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAdapter_FollowsNextLinkUntilTop(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			writePage(w, []map[string]interface{}{{"id": "3"}, {"id": "4"}}, srv.URL+r.URL.Path+"?page=3")
			return
		}
		if r.URL.Query().Get("page") == "3" {
			t.Error("третья страница не должна запрашиваться")
			return
		}
		writePage(w, []map[string]interface{}{{"id": "1"}, {"id": "2"}}, srv.URL+r.URL.Path+"?page=2")
	}))
	defer srv.Close()

	items, err := newTestAdapter(0).Fetch(context.Background(), basicConfig(srv.URL), ResourceCustomers, FetchParams{Top: 3})
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestAdapter_NextLinkToForeignHostIsRejected(t *testing.T) {
	var foreignCalls int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&foreignCalls, 1)
		writePage(w, []map[string]interface{}{{"id": "x"}}, "")
	}))
	defer foreign.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, []map[string]interface{}{{"id": "1"}}, foreign.URL+"/companies(x)/customers?page=2")
	}))
	defer srv.Close()

	_, err := newTestAdapter(0).Fetch(context.Background(), basicConfig(srv.URL), ResourceCustomers, FetchParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExternalSystem)
	assert.NotErrorIs(t, err, apperrors.ErrExternalSystemUnavailable)
	assert.Zero(t, atomic.LoadInt32(&foreignCalls), "учётные данные компании не уходят на чужой адрес")
}

func TestAdapter_RepeatingNextLinkStops(t *testing.T) {
	var calls int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writePage(w, []map[string]interface{}{{"id": "1"}}, srv.URL+r.URL.Path+"?page=2")
	}))
	defer srv.Close()

	_, err := newTestAdapter(0).Fetch(context.Background(), basicConfig(srv.URL), ResourceCustomers, FetchParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExternalSystem)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAdapter_PageLimitStopsEndlessPaging(t *testing.T) {
	var calls int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		writePage(w, []map[string]interface{}{{"id": fmt.Sprint(n)}}, fmt.Sprintf("%s%s?page=%d", srv.URL, r.URL.Path, n+1))
	}))
	defer srv.Close()

	adapter := NewAdapter(Options{HTTPTimeout: 2 * time.Second, MaxPages: 5}, nil, zap.NewNop())
	_, err := adapter.Fetch(context.Background(), basicConfig(srv.URL), ResourceCustomers, FetchParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExternalSystem)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestAdapter_RetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writePage(w, []map[string]interface{}{{"id": "1"}}, "")
	}))
	defer srv.Close()

	items, err := newTestAdapter(3).Fetch(context.Background(), basicConfig(srv.URL), ResourceCustomers, FetchParams{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAdapter_UnavailableAfterRetriesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestAdapter(2).Fetch(context.Background(), basicConfig(srv.URL), ResourceCustomers, FetchParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExternalSystemUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "одна попытка и два повтора")

	var extErr *apperrors.ExternalSystemError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, 3, extErr.Attempts)
	assert.Equal(t, http.StatusBadGateway, extErr.StatusCode)
}

func TestAdapter_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":{"code":"BadRequest"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestAdapter(3).Fetch(context.Background(), basicConfig(srv.URL), ResourceCustomers, FetchParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExternalSystem)
	assert.NotErrorIs(t, err, apperrors.ErrExternalSystemUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAdapter_UnauthorizedIsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := newTestAdapter(3).NewClient("acme", basicConfig(srv.URL))
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), ResourceCustomers, FetchParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTenantConnection)

	var connErr *apperrors.TenantConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "acme", connErr.Company)
	assert.Equal(t, apperrors.PartERP, connErr.Part)
}

func TestAdapter_HonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAdapter(5).Fetch(ctx, basicConfig(srv.URL), ResourceCustomers, FetchParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdapter_OAuth2ClientReusesToken(t *testing.T) {
	var tokenCalls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/token") {
			atomic.AddInt32(&tokenCalls, 1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writePage(w, []map[string]interface{}{{"id": "p1"}}, "")
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	cfg := Config{
		BaseURL:   srv.URL,
		CompanyID: "cmp",
		Auth:      AuthConfig{Type: entities.BCAuthOAuth2, ClientID: "app", Secret: "s3cret", TokenURL: srv.URL + "/token"},
	}
	client, err := newTestAdapter(0).NewClient("acme", cfg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		items, err := client.Fetch(context.Background(), ResourcePaymentTerms, FetchParams{})
		require.NoError(t, err)
		assert.Len(t, items, 1)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestConfig_ValidateAndFingerprint(t *testing.T) {
	cfg := basicConfig("https://api.businesscentral.dynamics.com/v2.0/{environment}/api/v2.0")
	cfg.Environment = "Production"
	require.NoError(t, cfg.Validate())
	assert.Equal(t,
		"https://api.businesscentral.dynamics.com/v2.0/Production/api/v2.0/companies(c0ffee00-0000-0000-0000-000000000001)/customers",
		cfg.resourceURL(ResourceCustomers))

	changed := cfg
	changed.Auth.Secret = "rotated"
	assert.NotEqual(t, cfg.Fingerprint(), changed.Fingerprint())

	broken := cfg
	broken.Auth.Secret = ""
	assert.Error(t, broken.Validate())

	_, err := newTestAdapter(0).NewClient("acme", broken)
	assert.ErrorIs(t, err, apperrors.ErrTenantConnection)
}
