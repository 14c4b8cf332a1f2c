// Файл: internal/integrations/bc/provider.go
package bc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"business-api/internal/entities"
	apperrors "business-api/pkg/errors"
	"business-api/pkg/monitoring"
)

// ClientInterface - клиент Business Central, привязанный к одной компании.
type ClientInterface interface {
	Company() string
	Fetch(ctx context.Context, resource string, params FetchParams) ([]json.RawMessage, error)
}

type Options struct {
	HTTPTimeout time.Duration
	MaxRetries  uint64
	BackoffBase time.Duration
	BackoffCap  time.Duration
	MaxPages    int
	Transport   http.RoundTripper
}

// Adapter - транспорт к веб-сервисам Business Central. Состояния компаний не держит:
// каждый вызов полностью задаётся переданным Config.
type Adapter struct {
	httpClient  *http.Client
	maxRetries  uint64
	backoffBase time.Duration
	backoffCap  time.Duration
	maxPages    int
	metrics     *monitoring.Metrics
	logger      *zap.Logger
}

func NewAdapter(opts Options, metrics *monitoring.Metrics, logger *zap.Logger) *Adapter {
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 200 * time.Millisecond
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = 5 * time.Second
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 20 * time.Second
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1000
	}
	return &Adapter{
		httpClient: &http.Client{
			Timeout:   opts.HTTPTimeout,
			Transport: otelhttp.NewTransport(transport),
		},
		maxRetries:  opts.MaxRetries,
		backoffBase: opts.BackoffBase,
		backoffCap:  opts.BackoffCap,
		maxPages:    opts.MaxPages,
		metrics:     metrics,
		logger:      logger.Named("bc_adapter"),
	}
}

// Fetch - разовый вызов без кеширования токена.
func (a *Adapter) Fetch(ctx context.Context, cfg Config, resource string, params FetchParams) ([]json.RawMessage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewTenantConnectionError(cfg.CompanyID, apperrors.PartERP, err)
	}
	return a.fetch(ctx, cfg, a.tokenSource(ctx, cfg, false), resource, params)
}

// NewClient привязывает адаптер к конфигу компании. OAuth2-токен переиспользуется клиентом до истечения.
func (a *Adapter) NewClient(company string, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewTenantConnectionError(company, apperrors.PartERP, err)
	}
	return &Client{
		adapter: a,
		company: company,
		cfg:     cfg,
		tokens:  a.tokenSource(context.Background(), cfg, true),
	}, nil
}

func (a *Adapter) tokenSource(ctx context.Context, cfg Config, reuse bool) oauth2.TokenSource {
	if cfg.Auth.Type != entities.BCAuthOAuth2 {
		return nil
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.Secret,
		TokenURL:     cfg.Auth.TokenURL,
	}
	if cfg.Auth.Scope != "" {
		cc.Scopes = []string{cfg.Auth.Scope}
	}
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	ts := cc.TokenSource(tokenCtx)
	if reuse {
		return oauth2.ReuseTokenSource(nil, ts)
	}
	return ts
}

func (a *Adapter) fetch(ctx context.Context, cfg Config, tokens oauth2.TokenSource, resource string, params FetchParams) (result []json.RawMessage, err error) {
	ctx, span := otel.Tracer("business-api/bc").Start(ctx, "bc.Fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("bc.resource", resource)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	query, err := buildQuery(params)
	if err != nil {
		return nil, apperrors.NewValidationError("filter", "%s", err.Error())
	}
	next := cfg.resourceURL(resource)
	if encoded := query.Encode(); encoded != "" {
		next += "?" + encoded
	}

	origin, err := url.Parse(cfg.baseURL())
	if err != nil {
		return nil, apperrors.NewTenantConnectionError(cfg.CompanyID, apperrors.PartERP, err)
	}

	result = make([]json.RawMessage, 0)
	visited := make(map[string]struct{})
	for next != "" {
		if err := a.checkNextLink(origin, visited, resource, next); err != nil {
			a.metrics.ERPRequest(resource, "error")
			return nil, err
		}
		p, err := a.getWithRetry(ctx, cfg, tokens, resource, next)
		if err != nil {
			a.metrics.ERPRequest(resource, "error")
			return nil, err
		}
		result = append(result, p.Value...)
		if params.Top > 0 && len(result) >= params.Top {
			result = result[:params.Top]
			break
		}
		next = p.NextLink
	}

	a.metrics.ERPRequest(resource, "ok")
	a.logger.Debug("Получены записи из Business Central",
		zap.String("resource", resource),
		zap.Int("count", len(result)),
	)
	return result, nil
}

// checkNextLink не пускает запрос с учётными данными компании за пределы её адреса
// и обрывает зацикленную или бесконечную пагинацию.
func (a *Adapter) checkNextLink(origin *url.URL, visited map[string]struct{}, resource, link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return &apperrors.ExternalSystemError{Resource: resource, Err: fmt.Errorf("неверная ссылка на следующую страницу: %w", err)}
	}
	if !strings.EqualFold(u.Scheme, origin.Scheme) || !strings.EqualFold(u.Host, origin.Host) {
		a.logger.Warn("Ссылка на следующую страницу ведёт на чужой адрес",
			zap.String("resource", resource),
			zap.String("host", u.Host),
		)
		return &apperrors.ExternalSystemError{Resource: resource, Err: fmt.Errorf("ссылка на следующую страницу ведёт на %s://%s", u.Scheme, u.Host)}
	}
	if _, seen := visited[link]; seen {
		return &apperrors.ExternalSystemError{Resource: resource, Err: errors.New("ссылка на следующую страницу повторяется")}
	}
	if len(visited) >= a.maxPages {
		return &apperrors.ExternalSystemError{Resource: resource, Err: fmt.Errorf("превышен лимит в %d страниц", a.maxPages)}
	}
	visited[link] = struct{}{}
	return nil
}

// getWithRetry повторяет только идемпотентный GET: сетевые сбои, 429 и 5xx.
func (a *Adapter) getWithRetry(ctx context.Context, cfg Config, tokens oauth2.TokenSource, resource, rawURL string) (*page, error) {
	backoff := retry.NewExponential(a.backoffBase)
	backoff = retry.WithCappedDuration(a.backoffCap, backoff)
	backoff = retry.WithMaxRetries(a.maxRetries, backoff)

	attempts := 0
	var result *page
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		p, err := a.getPage(ctx, cfg, tokens, rawURL)
		if err != nil {
			var ae *attemptError
			if errors.As(err, &ae) && ae.retryable {
				a.metrics.ERPRetry(resource)
				a.logger.Warn("Запрос к Business Central не удался, повторяем",
					zap.String("resource", resource),
					zap.Int("attempt", attempts),
					zap.Int("status", ae.status),
					zap.Error(ae.err),
				)
				return retry.RetryableError(err)
			}
			return err
		}
		result = p
		return nil
	})
	if err == nil {
		return result, nil
	}

	var ae *attemptError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return nil, &apperrors.ExternalSystemError{Resource: resource, Attempts: attempts, Unavailable: true, Err: err}
	case errors.Is(err, context.Canceled):
		return nil, fmt.Errorf("запрос %q отменён: %w", resource, err)
	case errors.As(err, &ae) && ae.authError:
		return nil, apperrors.NewTenantConnectionError(cfg.CompanyID, apperrors.PartERP, ae)
	case errors.As(err, &ae) && ae.retryable:
		return nil, &apperrors.ExternalSystemError{Resource: resource, Attempts: attempts, StatusCode: ae.status, Unavailable: true, Err: ae.err}
	case errors.As(err, &ae):
		return nil, &apperrors.ExternalSystemError{Resource: resource, Attempts: attempts, StatusCode: ae.status, Err: ae.err}
	}
	return nil, &apperrors.ExternalSystemError{Resource: resource, Attempts: attempts, Err: err}
}

// Client - адаптер, привязанный к одной компании. Безопасен для конкурентных вызовов.
type Client struct {
	adapter *Adapter
	company string
	cfg     Config
	tokens  oauth2.TokenSource
}

func (c *Client) Company() string { return c.company }

func (c *Client) Config() Config { return c.cfg }

func (c *Client) Fetch(ctx context.Context, resource string, params FetchParams) ([]json.RawMessage, error) {
	items, err := c.adapter.fetch(ctx, c.cfg, c.tokens, resource, params)
	var connErr *apperrors.TenantConnectionError
	if errors.As(err, &connErr) {
		connErr.Company = c.company
	}
	return items, err
}
