package quote

import (
	"fmt"

	"swap-quoter/pkg/types"
)

// TokenLookup resolves a symbol or address on a chain.
type TokenLookup interface {
	Find(symbolOrAddress string, chainID int) (types.Token, error)
}

// Order is a quote request as a person types it: symbols and a human amount.
type Order struct {
	TokenIn    string
	TokenOut   string
	Amount     string
	ChainID    int
	Type       types.TradeType
	ClientSide bool
}

// BuildRequest resolves both tokens on the order's chain and converts the
// amount to base units of the token it is denominated in: the input token for
// exactIn, the output token for exactOut.
func BuildRequest(lookup TokenLookup, o Order) (types.TradeRequest, error) {
	tradeType := o.Type
	if tradeType == "" {
		tradeType = types.ExactIn
	}

	tokenIn, err := lookup.Find(o.TokenIn, o.ChainID)
	if err != nil {
		return types.TradeRequest{}, err
	}
	tokenOut, err := lookup.Find(o.TokenOut, o.ChainID)
	if err != nil {
		return types.TradeRequest{}, err
	}

	decimals := tokenIn.Decimals
	if tradeType == types.ExactOut {
		decimals = tokenOut.Decimals
	}
	amount, err := types.ToBaseUnits(o.Amount, decimals)
	if err != nil {
		return types.TradeRequest{}, err
	}

	return types.TradeRequest{
		TokenIn:             tokenIn,
		TokenOut:            tokenOut,
		Amount:              amount,
		Type:                tradeType,
		UseClientSideRouter: o.ClientSide,
	}, nil
}

// Display formats a successful quote for req in human units.
func Display(req types.TradeRequest, res types.QuoteResult) (types.QuoteDisplay, error) {
	summary, err := res.Summary()
	if err != nil {
		return types.QuoteDisplay{}, err
	}
	if summary.Quote == "" {
		return types.QuoteDisplay{}, fmt.Errorf("quote payload has no quote amount")
	}

	amountIn, amountOut := req.Amount, summary.Quote
	if req.Type == types.ExactOut {
		amountIn, amountOut = summary.Quote, req.Amount
	}

	rate, err := types.Rate(amountIn, req.TokenIn.Decimals, amountOut, req.TokenOut.Decimals)
	if err != nil {
		return types.QuoteDisplay{}, err
	}

	return types.QuoteDisplay{
		SourceAmount: types.FromBaseUnits(amountIn, req.TokenIn.Decimals),
		SourceToken:  req.TokenIn.Symbol,
		DestAmount:   types.FromBaseUnits(amountOut, req.TokenOut.Decimals),
		DestToken:    req.TokenOut.Symbol,
		Rate:         rate,
		GasUSD:       summary.GasUseEstimateUSD,
		Route:        summary.RouteString,
		ChainID:      req.TokenIn.ChainID,
		TradeType:    string(req.Type),
		Router:       string(StrategyFor(req)),
	}, nil
}
