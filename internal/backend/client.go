// Package backend is the REST client for the storefront backend that owns
// carts, coupons, addresses and orders.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

const maxResponseBody = 4 << 20

// ErrRejected is returned when the backend answered with a 4xx that has no
// more specific meaning for the caller.
var ErrRejected = errors.New("request rejected by backend")

// StatusError carries a non-2xx answer from the backend.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return d.ErrNotAuthenticated
	case e.Status >= 500:
		return d.ErrNetworkFailure
	}
	return ErrRejected
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Breaker    circuitbreaker.Config
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*response]
	logger  *zap.Logger
}

type response struct {
	status int
	body   []byte
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Breaker == (circuitbreaker.Config{}) {
		cfg.Breaker = circuitbreaker.DefaultConfig()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    hc,
		breaker: circuitbreaker.New[*response]("storefront-backend", cfg.Breaker, log, isBreakerSuccess),
		logger:  log,
	}
}

// only transport failures and 5xx count against the breaker
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status < 500
	}
	return errors.Is(err, context.Canceled)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		payload = b
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
		if err != nil {
			return nil, err
		}
		out := &response{status: res.StatusCode, body: data}
		if res.StatusCode >= 500 {
			return out, &StatusError{Method: method, Path: path, Status: res.StatusCode, Message: errorMessage(data)}
		}
		return out, nil
	})
	if err != nil {
		logger.FromContext(ctx, c.logger).Warn("backend call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		var se *StatusError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, fmt.Errorf("%w: %s %s: %v", d.ErrNetworkFailure, method, path, err)
	}
	return resp, nil
}

func expectOK(method, path string, resp *response) error {
	if resp.status >= 200 && resp.status < 300 {
		return nil
	}
	return &StatusError{Method: method, Path: path, Status: resp.status, Message: errorMessage(resp.body)}
}

// errorMessage pulls {"error": "..."} or {"message": "..."} out of a body.
func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func decode(method, path string, resp *response, v any) error {
	if err := json.Unmarshal(resp.body, v); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", d.ErrNetworkFailure, method, path, err)
	}
	return nil
}
