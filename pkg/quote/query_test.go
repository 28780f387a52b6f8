package quote

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-quoter/pkg/types"
)

// gatedResolver blocks resolutions of amounts listed in gates until the
// matching channel is closed.
type gatedResolver struct {
	calls   int32
	entered chan string
	gates   map[string]chan struct{}
	ctxErrs chan error
}

func (g *gatedResolver) Resolve(ctx context.Context, req types.TradeRequest) Result {
	atomic.AddInt32(&g.calls, 1)
	if g.entered != nil {
		g.entered <- req.Amount
	}
	if gate, ok := g.gates[req.Amount]; ok {
		<-gate
	}
	if g.ctxErrs != nil {
		g.ctxErrs <- ctx.Err()
	}
	return Result{Data: &types.QuoteResult{Payload: json.RawMessage(`{"amount":"` + req.Amount + `"}`)}}
}

type resolverFunc func(ctx context.Context, req types.TradeRequest) Result

func (f resolverFunc) Resolve(ctx context.Context, req types.TradeRequest) Result { return f(ctx, req) }

func TestQueryClientDeduplicatesInFlight(t *testing.T) {
	gate := make(chan struct{})
	res := &gatedResolver{entered: make(chan string, 4), gates: map[string]chan struct{}{"1000000": gate}}
	qc := NewQueryClient(res, 0)
	req := scenarioRequest(false)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = qc.Fetch(context.Background(), req)
	}()
	<-res.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = qc.Fetch(context.Background(), req)
	}()
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&res.calls))
	require.True(t, results[0].OK())
	require.True(t, results[1].OK())
	assert.Equal(t, string(results[0].Data.Payload), string(results[1].Data.Payload))
}

func TestQueryClientKeysOnRoutingFlag(t *testing.T) {
	res := &gatedResolver{}
	qc := NewQueryClient(res, 0)

	qc.Fetch(context.Background(), scenarioRequest(false))
	qc.Fetch(context.Background(), scenarioRequest(true))
	qc.Fetch(context.Background(), scenarioRequest(false))

	assert.Equal(t, int32(3), atomic.LoadInt32(&res.calls), "completed calls are not cached")
	assert.NotEqual(t, scenarioRequest(false).Key(), scenarioRequest(true).Key())
}

func TestQueryDropsSupersededResults(t *testing.T) {
	slow := make(chan struct{})
	res := &gatedResolver{entered: make(chan string, 4), gates: map[string]chan struct{}{"1": slow}}
	q := NewQueryClient(res, 0).NewQuery()

	first := scenarioRequest(false)
	first.Amount = "1"
	second := scenarioRequest(false)
	second.Amount = "2"

	type outcome struct {
		state   State
		current bool
	}
	done := make(chan outcome, 1)
	go func() {
		s, c := q.Run(context.Background(), first)
		done <- outcome{s, c}
	}()
	<-res.entered
	assert.True(t, q.State().Loading)

	state, current := q.Run(context.Background(), second)
	<-res.entered
	require.True(t, current)
	assert.False(t, state.Loading)
	assert.Equal(t, "2", state.Args.Amount)
	assert.JSONEq(t, `{"amount":"2"}`, string(state.Data.Payload))

	close(slow)
	late := <-done
	assert.False(t, late.current, "stale result must be dropped")
	assert.Equal(t, "2", late.state.Args.Amount)
	assert.Equal(t, "2", q.State().Args.Amount)
}

func TestQueryClientCallerCancellationIsNotShared(t *testing.T) {
	gate := make(chan struct{})
	res := &gatedResolver{
		entered: make(chan string, 4),
		gates:   map[string]chan struct{}{"1000000": gate},
		ctxErrs: make(chan error, 4),
	}
	qc := NewQueryClient(res, 0)
	req := scenarioRequest(false)

	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan Result, 1)
	go func() { doneA <- qc.Fetch(ctxA, req) }()
	<-res.entered

	doneB := make(chan Result, 1)
	go func() { doneB <- qc.Fetch(context.Background(), req) }()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	resA := <-doneA
	require.NotNil(t, resA.Err)
	assert.ErrorIs(t, resA.Err, context.Canceled)
	assert.Equal(t, KindTransport, resA.Err.Kind)

	close(gate)
	resB := <-doneB
	require.True(t, resB.OK(), "caller with a live context must get the shared result: %v", resB.Err)
	assert.JSONEq(t, `{"amount":"1000000"}`, string(resB.Data.Payload))

	assert.NoError(t, <-res.ctxErrs, "shared resolution must not inherit the first caller's cancellation")
	assert.Equal(t, int32(1), atomic.LoadInt32(&res.calls))
}

func TestQueryClientFlightTimeout(t *testing.T) {
	blocked := make(chan struct{})
	defer close(blocked)
	slow := resolverFunc(func(ctx context.Context, req types.TradeRequest) Result {
		select {
		case <-ctx.Done():
			return Result{Err: &QuoteError{Kind: KindTransport, Strategy: StrategyRemote, Err: ctx.Err()}}
		case <-blocked:
			return Result{}
		}
	})
	qc := NewQueryClient(slow, 20*time.Millisecond)

	res := qc.Fetch(context.Background(), scenarioRequest(false))
	require.NotNil(t, res.Err)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}
