package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"swap-quoter/pkg/retry"
)

const (
	DefaultBaseURL        = "https://api.uniswap.org/v1/"
	DefaultRequestTimeout = 15 * time.Second

	quotePath        = "quote"
	maxResponseBytes = 4 << 20
)

// Config holds the HTTP settings of the routing client
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	RateLimit      float64 // requests per second, 0 disables limiting
	RateBurst      int
}

// DefaultConfig returns a client config pointing at the public routing API
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		RequestTimeout: DefaultRequestTimeout,
		RateLimit:      5,
		RateBurst:      10,
	}
}

// APIError is a response obtained from the routing service that carries an
// error. It is never retried.
type APIError struct {
	StatusCode int    `json:"status"`
	ErrorCode  string `json:"errorCode,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Body       []byte `json:"-"`
}

func (e *APIError) Error() string {
	switch {
	case e.ErrorCode != "" && e.Detail != "":
		return fmt.Sprintf("API error (status %d): %s: %s", e.StatusCode, e.ErrorCode, e.Detail)
	case e.ErrorCode != "":
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.ErrorCode)
	case len(e.Body) > 0:
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, truncate(string(e.Body), 200))
	default:
		return fmt.Sprintf("API returned status code %d", e.StatusCode)
	}
}

// TransportError is a failure before any response was obtained.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport error: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// QuoteParams are the per-request query fields of a quote call
type QuoteParams struct {
	Protocols       []string
	TokenInAddress  string
	TokenInChainID  int
	TokenOutAddress string
	TokenOutChainID int
	Amount          string
	Type            string
}

// Encode renders the query in a stable order. The protocol list is joined
// with unescaped commas.
func (p QuoteParams) Encode() string {
	protocols := make([]string, len(p.Protocols))
	for i, proto := range p.Protocols {
		protocols[i] = url.QueryEscape(strings.ToLower(proto))
	}

	pairs := []struct{ key, value string }{
		{"tokenInAddress", url.QueryEscape(p.TokenInAddress)},
		{"tokenInChainId", strconv.Itoa(p.TokenInChainID)},
		{"tokenOutAddress", url.QueryEscape(p.TokenOutAddress)},
		{"tokenOutChainId", strconv.Itoa(p.TokenOutChainID)},
		{"amount", url.QueryEscape(p.Amount)},
		{"type", url.QueryEscape(p.Type)},
	}

	var b strings.Builder
	b.WriteString("protocols=")
	b.WriteString(strings.Join(protocols, ","))
	for _, kv := range pairs {
		b.WriteByte('&')
		b.WriteString(kv.key)
		b.WriteByte('=')
		b.WriteString(kv.value)
	}
	return b.String()
}

// RoutingClient issues quote requests against the remote routing service
type RoutingClient struct {
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
	logger  logrus.FieldLogger
}

// NewRoutingClient creates a new routing API client. httpClient may be nil.
func NewRoutingClient(cfg Config, httpClient *http.Client, logger logrus.FieldLogger) (*RoutingClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = DefaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &RoutingClient{
		baseURL: base,
		http:    httpClient,
		limiter: limiter,
		logger:  logger.WithField("component", "routing-client"),
	}, nil
}

// QuoteURL returns the full URL for params.
func (c *RoutingClient) QuoteURL(params QuoteParams) string {
	u := c.baseURL.ResolveReference(&url.URL{Path: quotePath})
	u.RawQuery = params.Encode()
	return u.String()
}

// GetQuote performs a single GET quote request and returns the body as sent
// by the service. Failures before a response are *TransportError; responses
// carrying an error are *APIError. A request that cannot be built is marked
// with retry.Permanent.
func (c *RoutingClient) GetQuote(ctx context.Context, params QuoteParams) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	endpoint := c.QuoteURL(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		// retrying cannot fix a request that does not build
		return nil, retry.Permanent(fmt.Errorf("failed to build quote request: %w", err))
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	log := c.logger.WithField("request_id", requestID)
	log.Debugf("GET %s", endpoint)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to read body: %w", err)}
	}
	log.WithField("status", resp.StatusCode).Debug("quote response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, body)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, &APIError{StatusCode: resp.StatusCode, ErrorCode: "PARSING_ERROR", Detail: "response is not valid JSON", Body: body}
	}

	var envelope struct {
		ErrorCode string `json:"errorCode"`
		Detail    string `json:"detail"`
	}
	if trimmed[0] == '{' && json.Unmarshal(trimmed, &envelope) == nil && envelope.ErrorCode != "" {
		return nil, &APIError{StatusCode: resp.StatusCode, ErrorCode: envelope.ErrorCode, Detail: envelope.Detail, Body: body}
	}

	return json.RawMessage(body), nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: body}

	var errorResp map[string]interface{}
	if err := json.Unmarshal(body, &errorResp); err == nil {
		if code, ok := errorResp["errorCode"].(string); ok {
			apiErr.ErrorCode = code
		}
		if detail, ok := errorResp["detail"].(string); ok {
			apiErr.Detail = detail
		} else if message, ok := errorResp["message"].(string); ok {
			apiErr.Detail = message
		}
	}
	return apiErr
}

// IsAPIError reports whether err carries a response from the service.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
