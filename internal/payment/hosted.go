package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
)

const pathOrders = "/v1/orders"

type HostedConfig struct {
	BaseURL   string
	ScriptURL string
	KeyID     string
	// KeySecret signs success callbacks. Empty disables verification.
	KeySecret  string
	StoreName  string
	ThemeColor string
	Timeout    time.Duration
	Breaker    circuitbreaker.Config
	HTTPClient *http.Client
}

// Hosted talks to a hosted-checkout provider: it creates a provider order,
// hands the browser what it needs to pay, and resolves the pending session
// when the browser reports back.
type Hosted struct {
	cfg     HostedConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger

	loaded atomic.Bool
	sfg    singleflight.Group

	mu      sync.Mutex
	pending map[string]Handlers
}

func NewHosted(cfg HostedConfig, log *zap.Logger) *Hosted {
	if log == nil {
		log = zap.NewNop()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Breaker == (circuitbreaker.Config{}) {
		cfg.Breaker = circuitbreaker.DefaultConfig()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Hosted{
		cfg:     cfg,
		http:    hc,
		breaker: circuitbreaker.New[[]byte]("payment-provider", cfg.Breaker, log, nil),
		logger:  log,
		pending: make(map[string]Handlers),
	}
}

func (h *Hosted) Loaded() bool {
	return h.loaded.Load()
}

// Load checks that the provider's checkout script is reachable. Once it
// succeeds later calls return immediately.
func (h *Hosted) Load(ctx context.Context) error {
	if h.loaded.Load() {
		return nil
	}
	_, err, _ := h.sfg.Do("load", func() (interface{}, error) {
		if h.loaded.Load() {
			return nil, nil
		}
		if _, err := h.call(ctx, http.MethodGet, h.cfg.ScriptURL, nil, false); err != nil {
			return nil, err
		}
		h.loaded.Store(true)
		return nil, nil
	})
	if err != nil {
		h.logger.Error("failed to load payment provider", zap.Error(err))
		return fmt.Errorf("%w: %v", d.ErrPaymentProviderUnavailable, err)
	}
	return nil
}

type createOrderDTO struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type providerOrderDTO struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *Hosted) Open(ctx context.Context, req Request, handlers Handlers) (*Session, error) {
	if !h.loaded.Load() {
		return nil, d.ErrPaymentProviderUnavailable
	}

	body, err := json.Marshal(createOrderDTO{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Reference,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal provider order: %w", err)
	}

	data, err := h.call(ctx, http.MethodPost, h.cfg.BaseURL+pathOrders, body, true)
	if err != nil {
		return nil, fmt.Errorf("%w: create provider order: %v", d.ErrPaymentProviderUnavailable, err)
	}
	var po providerOrderDTO
	if err := json.Unmarshal(data, &po); err != nil || po.ID == "" {
		return nil, fmt.Errorf("%w: malformed provider order", d.ErrPaymentProviderUnavailable)
	}

	h.mu.Lock()
	h.pending[po.ID] = handlers
	h.mu.Unlock()

	return &Session{
		ProviderOrderID: po.ID,
		KeyID:           h.cfg.KeyID,
		AmountMinor:     req.AmountMinor,
		Currency:        req.Currency,
		Name:            h.cfg.StoreName,
		Description:     req.Description,
		ScriptURL:       h.cfg.ScriptURL,
		ThemeColor:      h.cfg.ThemeColor,
		Prefill:         req.Prefill,
		Notes:           req.Notes,
	}, nil
}

// Succeed resolves a session the browser reports as paid. A bad signature
// resolves it as failed instead.
func (h *Hosted) Succeed(ctx context.Context, ids d.PaymentIDs) error {
	handlers, ok := h.take(ids.ProviderOrderID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, ids.ProviderOrderID)
	}
	if h.cfg.KeySecret != "" && !hmac.Equal([]byte(Sign(ids.ProviderOrderID, ids.PaymentID, h.cfg.KeySecret)), []byte(ids.Signature)) {
		h.logger.Warn("payment signature mismatch",
			zap.String("provider_order_id", ids.ProviderOrderID),
			zap.String("payment_id", ids.PaymentID))
		if handlers.OnFailure != nil {
			handlers.OnFailure(ctx, d.PaymentFailure{
				ProviderOrderID: ids.ProviderOrderID,
				Code:            "SIGNATURE_MISMATCH",
				Description:     ErrSignatureMismatch.Error(),
			})
		}
		return ErrSignatureMismatch
	}
	if handlers.OnSuccess != nil {
		handlers.OnSuccess(ctx, ids)
	}
	return nil
}

func (h *Hosted) Fail(ctx context.Context, f d.PaymentFailure) error {
	handlers, ok := h.take(f.ProviderOrderID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, f.ProviderOrderID)
	}
	if handlers.OnFailure != nil {
		handlers.OnFailure(ctx, f)
	}
	return nil
}

// Dismiss resolves a session whose payment UI was closed without paying.
func (h *Hosted) Dismiss(ctx context.Context, providerOrderID string) error {
	handlers, ok := h.take(providerOrderID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, providerOrderID)
	}
	if handlers.OnDismiss != nil {
		handlers.OnDismiss(ctx)
	}
	return nil
}

func (h *Hosted) Abandon(providerOrderID string) bool {
	_, ok := h.take(providerOrderID)
	return ok
}

func (h *Hosted) take(providerOrderID string) (Handlers, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	handlers, ok := h.pending[providerOrderID]
	delete(h.pending, providerOrderID)
	return handlers, ok
}

func (h *Hosted) call(ctx context.Context, method, target string, body []byte, auth bool) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	return h.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if auth {
			req.SetBasicAuth(h.cfg.KeyID, h.cfg.KeySecret)
		}

		res, err := h.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return nil, fmt.Errorf("%s %s: status %d", method, target, res.StatusCode)
		}
		return data, nil
	})
}

// Sign computes the provider's callback signature:
// hex(HMAC-SHA256(providerOrderID + "|" + paymentID, secret)).
func Sign(providerOrderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(providerOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
