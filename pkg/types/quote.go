package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrChainMismatch    = errors.New("input and output tokens are on different chains")
	ErrInvalidAmount    = errors.New("amount must be a non-negative base-unit integer")
	ErrInvalidAddress   = errors.New("invalid token address")
	ErrInvalidTradeType = errors.New("trade type must be exactIn or exactOut")
	ErrSameToken        = errors.New("input and output tokens are the same")
)

// TradeType says whether Amount is the input or the desired output
type TradeType string

const (
	ExactIn  TradeType = "exactIn"
	ExactOut TradeType = "exactOut"
)

// ParseTradeType accepts the wire names plus a few common spellings.
func ParseTradeType(s string) (TradeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exactin", "exact_in", "exact-in", "in":
		return ExactIn, nil
	case "exactout", "exact_out", "exact-out", "out":
		return ExactOut, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTradeType, s)
	}
}

// Protocol is a liquidity-source category a route may draw from
type Protocol string

const (
	ProtocolV2 Protocol = "V2"
	ProtocolV3 Protocol = "V3"
)

// QueryValue is the lowercase form used on the wire.
func (p Protocol) QueryValue() string {
	return strings.ToLower(string(p))
}

// Token is the minimal projection of a token entity needed to quote
type Token struct {
	ChainID  int    `json:"chainId" yaml:"chain_id"`
	Address  string `json:"address" yaml:"address"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

// TradeRequest is one quote request. It is passed by value and never mutated.
type TradeRequest struct {
	TokenIn             Token
	TokenOut            Token
	Amount              string
	Type                TradeType
	UseClientSideRouter bool
}

// Validate rejects requests that cannot be quoted consistently, including
// tokens on different chains.
func (r TradeRequest) Validate() error {
	if r.TokenIn.ChainID != r.TokenOut.ChainID {
		return fmt.Errorf("%w: %d != %d", ErrChainMismatch, r.TokenIn.ChainID, r.TokenOut.ChainID)
	}
	if !common.IsHexAddress(r.TokenIn.Address) {
		return fmt.Errorf("%w: tokenIn %q", ErrInvalidAddress, r.TokenIn.Address)
	}
	if !common.IsHexAddress(r.TokenOut.Address) {
		return fmt.Errorf("%w: tokenOut %q", ErrInvalidAddress, r.TokenOut.Address)
	}
	if common.HexToAddress(r.TokenIn.Address) == common.HexToAddress(r.TokenOut.Address) {
		return ErrSameToken
	}
	if r.Type != ExactIn && r.Type != ExactOut {
		return fmt.Errorf("%w: %q", ErrInvalidTradeType, r.Type)
	}
	if err := ValidateBaseUnits(r.Amount); err != nil {
		return err
	}
	return nil
}

// Key identifies a request by its full argument set. The routing flag is part
// of the key because it changes the computed result.
func (r TradeRequest) Key() string {
	return fmt.Sprintf("%d:%s>%d:%s/%s/%s/client=%t",
		r.TokenIn.ChainID, strings.ToLower(r.TokenIn.Address),
		r.TokenOut.ChainID, strings.ToLower(r.TokenOut.Address),
		r.Amount, r.Type, r.UseClientSideRouter)
}

// ValidateBaseUnits checks that amount is a plain decimal integer that fits in
// 256 bits.
func ValidateBaseUnits(amount string) error {
	if amount == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	for _, c := range amount {
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
	}
	if _, err := uint256.FromDecimal(amount); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return nil
}

// RouteToken is a token as handed to the local router. Symbol is dropped.
type RouteToken struct {
	Address  string `json:"address"`
	ChainID  int    `json:"chainId"`
	Decimals uint8  `json:"decimals"`
}

// RouteRequest is the normalized payload for the local router.
type RouteRequest struct {
	Type     TradeType  `json:"type"`
	ChainID  int        `json:"chainId"`
	TokenIn  RouteToken `json:"tokenIn"`
	TokenOut RouteToken `json:"tokenOut"`
	Amount   string     `json:"amount"`
}

// RouterOptions carries the protocols a route may use.
type RouterOptions struct {
	Protocols []Protocol
}

// Allows reports whether p is in the protocol list.
func (o RouterOptions) Allows(p Protocol) bool {
	for _, allowed := range o.Protocols {
		if strings.EqualFold(string(allowed), string(p)) {
			return true
		}
	}
	return false
}

// QuoteResult is the quote payload exactly as the pricing source produced it.
// Its shape belongs to the pricing source; Summary reads the well-known fields.
type QuoteResult struct {
	Payload json.RawMessage
}

// MarshalJSON emits the payload untouched.
func (q QuoteResult) MarshalJSON() ([]byte, error) {
	if len(q.Payload) == 0 {
		return []byte("null"), nil
	}
	return q.Payload, nil
}

// QuoteSummary holds the fields shared by remote and local quotes.
type QuoteSummary struct {
	Amount            string `json:"amount"`
	AmountDecimals    string `json:"amountDecimals"`
	Quote             string `json:"quote"`
	QuoteDecimals     string `json:"quoteDecimals"`
	QuoteGasAdjusted  string `json:"quoteGasAdjusted"`
	GasUseEstimateUSD string `json:"gasUseEstimateUSD"`
	RouteString       string `json:"routeString"`
	BlockNumber       string `json:"blockNumber"`
	QuoteID           string `json:"quoteId"`
}

// Summary decodes the well-known fields. Unknown fields are ignored.
func (q QuoteResult) Summary() (QuoteSummary, error) {
	var s QuoteSummary
	if len(q.Payload) == 0 {
		return s, errors.New("empty quote payload")
	}
	if err := json.Unmarshal(q.Payload, &s); err != nil {
		return s, fmt.Errorf("failed to decode quote: %w", err)
	}
	return s, nil
}

// QuoteDisplay holds formatted quote information for display
type QuoteDisplay struct {
	SourceAmount string `json:"source_amount"`
	SourceToken  string `json:"source_token"`
	DestAmount   string `json:"dest_amount"`
	DestToken    string `json:"dest_token"`
	Rate         string `json:"rate"`
	GasUSD       string `json:"gas_usd,omitempty"`
	Route        string `json:"route,omitempty"`
	ChainID      int    `json:"chain_id"`
	TradeType    string `json:"trade_type"`
	Router       string `json:"router"`
}
