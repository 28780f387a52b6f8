package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"swap-quoter/pkg/client"
	"swap-quoter/pkg/retry"
	"swap-quoter/pkg/types"
)

// Protocols is the fixed set of liquidity sources requested on both paths.
var Protocols = []types.Protocol{types.ProtocolV2, types.ProtocolV3}

// Quoter computes a quote for a validated request.
type Quoter interface {
	Quote(ctx context.Context, req types.TradeRequest) (types.QuoteResult, error)
}

// RoutingAPI is the remote pricing service.
type RoutingAPI interface {
	GetQuote(ctx context.Context, params client.QuoteParams) (json.RawMessage, error)
}

// LocalRouter is the in-process route computation.
type LocalRouter interface {
	GetQuote(ctx context.Context, req types.RouteRequest, opts types.RouterOptions) (types.QuoteResult, error)
}

// RemoteQuoter asks the routing service for a quote.
//
// Only failures that happen before a response is obtained are retried. Any
// response carrying an error ends the request immediately, without using the
// remaining attempts. Do not retry application errors here: the service has
// already answered and asking again returns the same answer.
type RemoteQuoter struct {
	api     RoutingAPI
	retryer *retry.Retryer
}

// NewRemoteQuoter creates a remote quoter.
func NewRemoteQuoter(api RoutingAPI, retryer *retry.Retryer) *RemoteQuoter {
	return &RemoteQuoter{api: api, retryer: retryer}
}

// Params builds the query for req.
func Params(req types.TradeRequest) client.QuoteParams {
	protocols := make([]string, len(Protocols))
	for i, p := range Protocols {
		protocols[i] = p.QueryValue()
	}
	return client.QuoteParams{
		Protocols:       protocols,
		TokenInAddress:  req.TokenIn.Address,
		TokenInChainID:  req.TokenIn.ChainID,
		TokenOutAddress: req.TokenOut.Address,
		TokenOutChainID: req.TokenOut.ChainID,
		Amount:          req.Amount,
		Type:            string(req.Type),
	}
}

// Quote implements Quoter.
func (q *RemoteQuoter) Quote(ctx context.Context, req types.TradeRequest) (types.QuoteResult, error) {
	params := Params(req)

	var payload json.RawMessage
	attempts, err := q.retryer.Do(ctx, func(ctx context.Context, attempt int) error {
		body, err := q.api.GetQuote(ctx, params)
		if err != nil {
			if client.IsAPIError(err) {
				return retry.Permanent(err)
			}
			return err
		}
		payload = body
		return nil
	})
	if err != nil {
		kind := KindTransport
		if client.IsAPIError(err) {
			kind = KindApplication
		}
		return types.QuoteResult{}, &QuoteError{Kind: kind, Strategy: StrategyRemote, Attempts: attempts, Err: err}
	}

	return types.QuoteResult{Payload: payload}, nil
}

// LocalQuoter delegates to the client-side router. It never retries: local
// computation is deterministic.
type LocalQuoter struct {
	router LocalRouter
}

// NewLocalQuoter creates a local quoter.
func NewLocalQuoter(router LocalRouter) *LocalQuoter {
	return &LocalQuoter{router: router}
}

// RouteRequest builds the normalized local-router payload for req. The chain
// is taken from the input token and symbols are dropped.
func RouteRequest(req types.TradeRequest) types.RouteRequest {
	return types.RouteRequest{
		Type:    req.Type,
		ChainID: req.TokenIn.ChainID,
		TokenIn: types.RouteToken{
			Address:  req.TokenIn.Address,
			ChainID:  req.TokenIn.ChainID,
			Decimals: req.TokenIn.Decimals,
		},
		TokenOut: types.RouteToken{
			Address:  req.TokenOut.Address,
			ChainID:  req.TokenOut.ChainID,
			Decimals: req.TokenOut.Decimals,
		},
		Amount: req.Amount,
	}
}

// Quote implements Quoter.
func (q *LocalQuoter) Quote(ctx context.Context, req types.TradeRequest) (types.QuoteResult, error) {
	if q.router == nil {
		return types.QuoteResult{}, &QuoteError{Kind: KindLocal, Strategy: StrategyLocal, Err: errors.New("no local router configured")}
	}
	res, err := q.router.GetQuote(ctx, RouteRequest(req), types.RouterOptions{Protocols: Protocols})
	if err != nil {
		return types.QuoteResult{}, &QuoteError{Kind: KindLocal, Strategy: StrategyLocal, Attempts: 1, Err: err}
	}
	if len(res.Payload) == 0 {
		return types.QuoteResult{}, &QuoteError{Kind: KindLocal, Strategy: StrategyLocal, Attempts: 1, Err: fmt.Errorf("local router returned an empty quote")}
	}
	return res, nil
}
