package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"swap-quoter/pkg/quote"
	"swap-quoter/pkg/tokens"
	"swap-quoter/pkg/types"
)

// Fetcher resolves quote requests. *quote.QueryClient satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, req types.TradeRequest) quote.Result
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Quotes         Fetcher
	Tokens         *tokens.Registry
	Gatherer       prometheus.Gatherer
	Logger         logrus.FieldLogger
	DefaultChainID int
	RequestTimeout time.Duration
}

// Server exposes quotes over HTTP.
type Server struct {
	quotes         Fetcher
	tokens         *tokens.Registry
	logger         logrus.FieldLogger
	defaultChainID int
	timeout        time.Duration

	router http.Handler
}

// New constructs the HTTP router.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Tokens == nil {
		cfg.Tokens = tokens.Default()
	}
	if cfg.DefaultChainID == 0 {
		cfg.DefaultChainID = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	s := &Server{
		quotes:         cfg.Quotes,
		tokens:         cfg.Tokens,
		logger:         cfg.Logger.WithField("component", "server"),
		defaultChainID: cfg.DefaultChainID,
		timeout:        cfg.RequestTimeout,
	}
	s.router = s.buildRouter(cfg.Gatherer)
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.logRequests)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.Health)
	r.Get("/tokens", s.ListTokens)
	r.With(chimw.Timeout(s.timeout)).Get("/quote", s.GetQuote)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": chimw.GetReqID(r.Context()),
		}).Debug("request handled")
	})
}

// Health reports liveness.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListTokens returns known tokens, optionally filtered by chainId and symbol.
func (s *Server) ListTokens(w http.ResponseWriter, r *http.Request) {
	chainID, err := intParam(r, "chainId", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Kind: string(quote.KindValidation), Message: err.Error()})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))

	list := make([]types.Token, 0)
	for _, t := range s.tokens.List(chainID) {
		if symbol == "" || strings.Contains(t.Symbol, symbol) {
			list = append(list, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": list})
}

type quoteResponse struct {
	Display types.QuoteDisplay `json:"display"`
	Quote   types.QuoteResult  `json:"quote"`
}

// GetQuote resolves a quote from human-readable parameters:
// tokenIn, tokenOut, amount, chainId, type, clientSide.
func (s *Server) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	chainID, err := intParam(r, "chainId", s.defaultChainID)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Kind: string(quote.KindValidation), Message: err.Error()})
		return
	}
	tradeType, err := types.ParseTradeType(q.Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Kind: string(quote.KindValidation), Message: err.Error()})
		return
	}
	clientSide := false
	if v := q.Get("clientSide"); v != "" {
		if clientSide, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, errorBody{Kind: string(quote.KindValidation), Message: "invalid clientSide: " + v})
			return
		}
	}

	req, err := quote.BuildRequest(s.tokens, quote.Order{
		TokenIn:    q.Get("tokenIn"),
		TokenOut:   q.Get("tokenOut"),
		Amount:     q.Get("amount"),
		ChainID:    chainID,
		Type:       tradeType,
		ClientSide: clientSide,
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, tokens.ErrTokenNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, errorBody{Kind: string(quote.KindValidation), Message: err.Error()})
		return
	}

	res := s.quotes.Fetch(r.Context(), req)
	if !res.OK() {
		if res.Err == nil {
			res.Err = &quote.QuoteError{Kind: quote.KindTransport, Strategy: quote.StrategyFor(req), Err: errors.New("empty quote result")}
		}
		writeQuoteError(w, res.Err)
		return
	}

	display, err := quote.Display(req, *res.Data)
	if err != nil {
		s.logger.WithError(err).Warn("quote payload missing summary fields")
	}
	writeJSON(w, http.StatusOK, quoteResponse{Display: display, Quote: *res.Data})
}

type errorBody struct {
	Kind     string `json:"kind"`
	Strategy string `json:"strategy,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts,omitempty"`
}

// StatusFor maps a resolver error to an HTTP status.
func StatusFor(err *quote.QuoteError) int {
	switch {
	case err.Kind == quote.KindValidation:
		return http.StatusBadRequest
	case quote.IsNoRoute(err):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case err.Kind == quote.KindTransport:
		return http.StatusServiceUnavailable
	case err.Kind == quote.KindApplication:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeQuoteError(w http.ResponseWriter, err *quote.QuoteError) {
	body := errorBody{
		Kind:     string(err.Kind),
		Strategy: string(err.Strategy),
		Message:  err.Error(),
		Attempts: err.Attempts,
	}
	if apiErr, ok := err.APIError(); ok {
		body.Code = apiErr.ErrorCode
	}
	writeError(w, StatusFor(err), body)
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid " + name + ": " + raw)
	}
	return v, nil
}
