package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"swap-quoter/pkg/metrics"
	"swap-quoter/pkg/types"
)

// Result is the outcome of one resolution: exactly one of Data and Err is set.
type Result struct {
	Data *types.QuoteResult
	Err  *QuoteError
}

// OK reports whether the result carries a quote.
func (r Result) OK() bool {
	return r.Err == nil && r.Data != nil
}

// Unpack converts the result into Go's usual value/error pair.
func (r Result) Unpack() (types.QuoteResult, error) {
	if r.Err != nil {
		return types.QuoteResult{}, r.Err
	}
	if r.Data == nil {
		return types.QuoteResult{}, errors.New("empty result")
	}
	return *r.Data, nil
}

// Resolver picks the quoter for a request and normalizes the outcome.
type Resolver struct {
	remote  Quoter
	local   Quoter
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithMetrics records every resolution in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a resolver over the two strategies.
func NewResolver(remote, local Quoter, opts ...Option) *Resolver {
	r := &Resolver{remote: remote, local: local}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logrus.StandardLogger()
	}
	r.logger = r.logger.WithField("component", "resolver")
	return r
}

// StrategyFor returns the strategy the routing flag selects.
func StrategyFor(req types.TradeRequest) Strategy {
	if req.UseClientSideRouter {
		return StrategyLocal
	}
	return StrategyRemote
}

// Resolve produces a quote for req. It never panics; every failure comes back
// as Result.Err.
func (r *Resolver) Resolve(ctx context.Context, req types.TradeRequest) (res Result) {
	start := time.Now()
	strategy := StrategyFor(req)
	log := r.logger.WithFields(logrus.Fields{"strategy": strategy, "type": req.Type, "chain_id": req.TokenIn.ChainID})

	defer func() {
		if p := recover(); p != nil {
			res = Result{Err: &QuoteError{Kind: defaultKind(strategy), Strategy: strategy, Err: fmt.Errorf("quoter panic: %v", p)}}
		}

		outcome, attempts := "ok", 0
		if res.Err != nil {
			outcome, attempts = string(res.Err.Kind), res.Err.Attempts
			log.WithError(res.Err).Debug("quote failed")
		} else {
			log.Debugf("quote resolved in %v", time.Since(start))
		}
		r.metrics.ObserveQuote(string(strategy), outcome, attempts, time.Since(start))
	}()

	if err := req.Validate(); err != nil {
		return Result{Err: &QuoteError{Kind: KindValidation, Strategy: strategy, Err: err}}
	}

	quoter := r.remote
	if strategy == StrategyLocal {
		quoter = r.local
	}
	if quoter == nil {
		return Result{Err: &QuoteError{Kind: defaultKind(strategy), Strategy: strategy, Err: fmt.Errorf("no %s quoter configured", strategy)}}
	}

	data, err := quoter.Quote(ctx, req)
	if err != nil {
		return Result{Err: normalize(err, strategy)}
	}
	return Result{Data: &data}
}

func normalize(err error, strategy Strategy) *QuoteError {
	var qe *QuoteError
	if errors.As(err, &qe) {
		return qe
	}
	return &QuoteError{Kind: defaultKind(strategy), Strategy: strategy, Attempts: 1, Err: err}
}

// defaultKind is the kind for failures the quoter did not classify.
func defaultKind(strategy Strategy) Kind {
	if strategy == StrategyLocal {
		return KindLocal
	}
	return KindTransport
}
