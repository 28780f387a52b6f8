package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"swap-quoter/pkg/types"
)

// PoolRouter computes quotes in-process from a snapshot of constant-product
// pools. It considers direct pools and routes through one intermediate token.
// It is safe for concurrent use; the pool set is read-only after creation.
type PoolRouter struct {
	pools  map[int][]Pool
	logger logrus.FieldLogger
}

// NewPoolRouter indexes pools by chain.
func NewPoolRouter(pools []Pool, logger logrus.FieldLogger) *PoolRouter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	byChain := make(map[int][]Pool)
	for _, p := range pools {
		byChain[p.ChainID] = append(byChain[p.ChainID], p)
	}
	return &PoolRouter{
		pools:  byChain,
		logger: logger.WithField("component", "local-router"),
	}
}

// PoolCount returns the number of pools known on chainID, or on all chains
// when chainID is 0.
func (r *PoolRouter) PoolCount(chainID int) int {
	if chainID != 0 {
		return len(r.pools[chainID])
	}
	n := 0
	for _, ps := range r.pools {
		n += len(ps)
	}
	return n
}

type hop struct {
	pool      Pool
	tokenIn   common.Address
	tokenOut  common.Address
	amountIn  *big.Int
	amountOut *big.Int
}

type route []hop

// GetQuote prices req over the snapshot. The payload mirrors the remote
// service's quote shape.
func (r *PoolRouter) GetQuote(ctx context.Context, req types.RouteRequest, opts types.RouterOptions) (types.QuoteResult, error) {
	if err := ctx.Err(); err != nil {
		return types.QuoteResult{}, err
	}
	if !common.IsHexAddress(req.TokenIn.Address) || !common.IsHexAddress(req.TokenOut.Address) {
		return types.QuoteResult{}, types.ErrInvalidAddress
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return types.QuoteResult{}, fmt.Errorf("%w: %q", types.ErrInvalidAmount, req.Amount)
	}
	if !opts.Allows(types.ProtocolV2) {
		return types.QuoteResult{}, fmt.Errorf("%w: no supported protocol in %v", ErrNoRoute, opts.Protocols)
	}

	tokenIn := common.HexToAddress(req.TokenIn.Address)
	tokenOut := common.HexToAddress(req.TokenOut.Address)

	candidates := r.routes(req.ChainID, tokenIn, tokenOut)
	r.logger.Debugf("chain %d: %d candidate routes %s -> %s", req.ChainID, len(candidates), tokenIn.Hex(), tokenOut.Hex())
	if len(candidates) == 0 {
		return types.QuoteResult{}, ErrNoRoute
	}

	var (
		best    route
		lastErr error
	)
	for _, c := range candidates {
		var err error
		if req.Type == types.ExactOut {
			err = c.fillExactOut(amount)
		} else {
			err = c.fillExactIn(amount)
		}
		if err != nil {
			lastErr = err
			continue
		}
		if best == nil || c.better(best, req.Type) {
			best = c
		}
	}
	if best == nil {
		if errors.Is(lastErr, ErrInsufficientLiquidity) {
			return types.QuoteResult{}, lastErr
		}
		return types.QuoteResult{}, ErrNoRoute
	}

	payload, err := json.Marshal(newQuotePayload(req, best))
	if err != nil {
		return types.QuoteResult{}, fmt.Errorf("failed to encode quote: %w", err)
	}
	return types.QuoteResult{Payload: payload}, nil
}

func (r *PoolRouter) routes(chainID int, tokenIn, tokenOut common.Address) []route {
	pools := r.pools[chainID]
	var out []route

	for _, p := range pools {
		if p.Protocol == types.ProtocolV2 && p.Has(tokenIn) && p.Has(tokenOut) {
			out = append(out, route{{pool: p, tokenIn: tokenIn, tokenOut: tokenOut}})
		}
	}

	for i, first := range pools {
		if first.Protocol != types.ProtocolV2 || !first.Has(tokenIn) || first.Has(tokenOut) {
			continue
		}
		mid := first.Other(tokenIn)
		for j, second := range pools {
			if i == j || second.Protocol != types.ProtocolV2 || !second.Has(mid) || !second.Has(tokenOut) {
				continue
			}
			out = append(out, route{
				{pool: first, tokenIn: tokenIn, tokenOut: mid},
				{pool: second, tokenIn: mid, tokenOut: tokenOut},
			})
		}
	}
	return out
}

func (rt route) fillExactIn(amountIn *big.Int) error {
	amt := new(big.Int).Set(amountIn)
	for i := range rt {
		out, err := rt[i].pool.AmountOut(rt[i].tokenIn, amt)
		if err != nil {
			return err
		}
		if out.Sign() == 0 {
			return fmt.Errorf("%w: pool %s returns nothing", ErrInsufficientLiquidity, rt[i].pool.Address.Hex())
		}
		rt[i].amountIn, rt[i].amountOut = amt, out
		amt = out
	}
	return nil
}

func (rt route) fillExactOut(amountOut *big.Int) error {
	amt := new(big.Int).Set(amountOut)
	for i := len(rt) - 1; i >= 0; i-- {
		in, err := rt[i].pool.AmountIn(rt[i].tokenIn, amt)
		if err != nil {
			return err
		}
		rt[i].amountIn, rt[i].amountOut = in, amt
		amt = in
	}
	return nil
}

func (rt route) input() *big.Int  { return rt[0].amountIn }
func (rt route) output() *big.Int { return rt[len(rt)-1].amountOut }

// better prefers more output for exactIn and less input for exactOut, then
// fewer hops.
func (rt route) better(other route, tradeType types.TradeType) bool {
	var cmp int
	if tradeType == types.ExactOut {
		cmp = other.input().Cmp(rt.input())
	} else {
		cmp = rt.output().Cmp(other.output())
	}
	if cmp != 0 {
		return cmp > 0
	}
	return len(rt) < len(other)
}

type routeToken struct {
	Address  string `json:"address"`
	ChainID  int    `json:"chainId"`
	Decimals *uint8 `json:"decimals,omitempty"`
}

type routeHop struct {
	Type      string     `json:"type"`
	Address   string     `json:"address"`
	TokenIn   routeToken `json:"tokenIn"`
	TokenOut  routeToken `json:"tokenOut"`
	Fee       string     `json:"fee"`
	AmountIn  string     `json:"amountIn"`
	AmountOut string     `json:"amountOut"`
}

type quotePayload struct {
	Amount         string       `json:"amount"`
	AmountDecimals string       `json:"amountDecimals"`
	Quote          string       `json:"quote"`
	QuoteDecimals  string       `json:"quoteDecimals"`
	Route          [][]routeHop `json:"route"`
	RouteString    string       `json:"routeString"`
}

func newQuotePayload(req types.RouteRequest, rt route) quotePayload {
	amount, quote := rt.input(), rt.output()
	amountDec, quoteDec := req.TokenIn.Decimals, req.TokenOut.Decimals
	if req.Type == types.ExactOut {
		amount, quote = quote, amount
		amountDec, quoteDec = quoteDec, amountDec
	}

	first := common.HexToAddress(req.TokenIn.Address)
	last := common.HexToAddress(req.TokenOut.Address)
	token := func(addr common.Address) routeToken {
		t := routeToken{Address: addr.Hex(), ChainID: req.ChainID}
		switch addr {
		case first:
			d := req.TokenIn.Decimals
			t.Decimals = &d
		case last:
			d := req.TokenOut.Decimals
			t.Decimals = &d
		}
		return t
	}

	hops := make([]routeHop, len(rt))
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] 100.00%% = %s", types.ProtocolV2, shortAddr(rt[0].tokenIn))
	for i, h := range rt {
		hops[i] = routeHop{
			Type:      strings.ToLower(string(h.pool.Protocol)) + "-pool",
			Address:   h.pool.Address.Hex(),
			TokenIn:   token(h.tokenIn),
			TokenOut:  token(h.tokenOut),
			Fee:       fmt.Sprintf("%d", h.pool.FeeBps),
			AmountIn:  h.amountIn.String(),
			AmountOut: h.amountOut.String(),
		}
		fmt.Fprintf(&sb, " -- %.2f%% [%s] --> %s", float64(h.pool.FeeBps)/100, shortAddr(h.pool.Address), shortAddr(h.tokenOut))
	}

	return quotePayload{
		Amount:         amount.String(),
		AmountDecimals: types.FromBaseUnits(amount.String(), amountDec),
		Quote:          quote.String(),
		QuoteDecimals:  types.FromBaseUnits(quote.String(), quoteDec),
		Route:          [][]routeHop{hops},
		RouteString:    sb.String(),
	}
}

func shortAddr(addr common.Address) string {
	h := addr.Hex()
	return h[:6] + ".." + h[len(h)-4:]
}
