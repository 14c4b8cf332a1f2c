package bc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

var filterFieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// page - конверт ответа OData.
type page struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// attemptError - результат одной попытки GET. retryable решает, повторять ли запрос.
type attemptError struct {
	status    int
	retryable bool
	authError bool
	err       error
}

func (e *attemptError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("статус %d: %v", e.status, e.err)
	}
	return e.err.Error()
}

func (e *attemptError) Unwrap() error { return e.err }

func buildQuery(params FetchParams) (url.Values, error) {
	q := url.Values{}
	if params.Top > 0 {
		q.Set("$top", strconv.Itoa(params.Top))
	}
	if params.FilterField != "" {
		if !filterFieldPattern.MatchString(params.FilterField) {
			return nil, fmt.Errorf("недопустимое поле фильтра %q", params.FilterField)
		}
		value := strings.ReplaceAll(params.FilterValue, "'", "''")
		q.Set("$filter", fmt.Sprintf("%s eq '%s'", params.FilterField, value))
	}
	return q, nil
}

// getPage выполняет одну попытку GET и классифицирует сбой.
func (a *Adapter) getPage(ctx context.Context, cfg Config, tokens oauth2.TokenSource, rawURL string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &attemptError{err: fmt.Errorf("ошибка создания GET-запроса: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	if tokens != nil {
		tok, err := tokens.Token()
		if err != nil {
			var re *oauth2.RetrieveError
			if errors.As(err, &re) {
				status := 0
				if re.Response != nil {
					status = re.Response.StatusCode
				}
				if status >= http.StatusInternalServerError {
					return nil, &attemptError{status: status, retryable: true, err: err}
				}
				return nil, &attemptError{status: status, authError: true, err: fmt.Errorf("не удалось получить токен: %w", err)}
			}
			return nil, &attemptError{retryable: true, err: fmt.Errorf("не удалось получить токен: %w", err)}
		}
		tok.SetAuthHeader(req)
	} else {
		req.SetBasicAuth(cfg.Auth.Username, cfg.Auth.Secret)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &attemptError{retryable: true, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		ae := &attemptError{status: resp.StatusCode, err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			ae.authError = true
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			ae.retryable = true
		}
		return nil, ae
	}

	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		// Обрезанное тело - обычно обрыв соединения.
		return nil, &attemptError{retryable: true, err: fmt.Errorf("ошибка разбора ответа: %w", err)}
	}
	return &p, nil
}
