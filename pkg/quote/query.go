package quote

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"swap-quoter/pkg/types"
)

// Resolving is anything that resolves trade requests.
type Resolving interface {
	Resolve(ctx context.Context, req types.TradeRequest) Result
}

// DefaultFlightTimeout bounds a shared resolution once it no longer follows
// any single caller's context.
const DefaultFlightTimeout = 2 * time.Minute

// QueryClient deduplicates concurrent resolutions of the same request. Calls
// share work only while one is in flight; nothing is cached afterwards.
// The shared resolution is detached from the caller that started it and runs
// under its own timeout; each caller stops waiting when its own context ends.
type QueryClient struct {
	resolver Resolving
	timeout  time.Duration
	group    singleflight.Group
}

// NewQueryClient wraps resolver. A non-positive timeout selects
// DefaultFlightTimeout.
func NewQueryClient(resolver Resolving, timeout time.Duration) *QueryClient {
	if timeout <= 0 {
		timeout = DefaultFlightTimeout
	}
	return &QueryClient{resolver: resolver, timeout: timeout}
}

// Fetch resolves req, joining an identical in-flight call if there is one.
// The key is the full argument set, routing flag included.
func (c *QueryClient) Fetch(ctx context.Context, req types.TradeRequest) Result {
	ch := c.group.DoChan(req.Key(), func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.resolver.Resolve(flightCtx, req), nil
	})

	select {
	case r := <-ch:
		return r.Val.(Result)
	case <-ctx.Done():
		strategy := StrategyFor(req)
		return Result{Err: &QuoteError{Kind: defaultKind(strategy), Strategy: strategy, Err: ctx.Err()}}
	}
}

// State is what a consumer of a query observes.
type State struct {
	Args    types.TradeRequest
	Loading bool
	Data    *types.QuoteResult
	Err     *QuoteError
}

// Query tracks the latest request of one consumer, such as a screen whose
// amount is being edited. A result that arrives after a newer request was
// issued is dropped.
type Query struct {
	client *QueryClient

	mu    sync.Mutex
	seq   uint64
	state State
}

// NewQuery creates a query bound to client.
func (c *QueryClient) NewQuery() *Query {
	return &Query{client: c}
}

// Run issues req and returns the state once it settles. current is false
// when a newer Run superseded this one; the returned state is then the
// newer request's state.
func (q *Query) Run(ctx context.Context, req types.TradeRequest) (state State, current bool) {
	q.mu.Lock()
	q.seq++
	seq := q.seq
	q.state = State{Args: req, Loading: true}
	q.mu.Unlock()

	res := q.client.Fetch(ctx, req)

	q.mu.Lock()
	defer q.mu.Unlock()
	if seq != q.seq {
		return q.state, false
	}
	q.state = State{Args: req, Data: res.Data, Err: res.Err}
	return q.state, true
}

// State returns the current state.
func (q *Query) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}
