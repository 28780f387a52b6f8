package tokens

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"swap-quoter/pkg/types"
)

var ErrTokenNotFound = errors.New("token not found")

// builtin is the default token list
var builtin = []types.Token{
	{ChainID: 1, Symbol: "USDC", Decimals: 6, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
	{ChainID: 1, Symbol: "USDT", Decimals: 6, Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7"},
	{ChainID: 1, Symbol: "DAI", Decimals: 18, Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F"},
	{ChainID: 1, Symbol: "WETH", Decimals: 18, Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"},
	{ChainID: 1, Symbol: "WBTC", Decimals: 8, Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"},
	{ChainID: 1, Symbol: "UNI", Decimals: 18, Address: "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"},
	{ChainID: 42161, Symbol: "USDC", Decimals: 6, Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"},
	{ChainID: 42161, Symbol: "WETH", Decimals: 18, Address: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"},
	{ChainID: 137, Symbol: "USDC", Decimals: 6, Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"},
	{ChainID: 137, Symbol: "WETH", Decimals: 18, Address: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619"},
}

// aliases map native assets to the wrapped token the routers trade
var aliases = map[string]string{
	"ETH": "WETH",
	"BTC": "WBTC",
}

// CanonicalSymbol upper-cases symbol and resolves native-asset aliases.
func CanonicalSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if canonical, ok := aliases[symbol]; ok {
		return canonical
	}
	return symbol
}

// TokenList is the on-disk format of a token list file
type TokenList struct {
	Tokens []types.Token `yaml:"tokens"`
}

// Registry resolves symbols and addresses to token descriptors
type Registry struct {
	tokens []types.Token
}

// New creates a registry holding the given tokens.
func New(list []types.Token) (*Registry, error) {
	r := &Registry{}
	for _, t := range list {
		if err := r.Add(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns a registry with the built-in tokens.
func Default() *Registry {
	r, err := New(builtin)
	if err != nil {
		panic(err)
	}
	return r
}

// Load returns the built-in tokens extended with a YAML token list. An empty
// path yields the defaults.
func Load(path string) (*Registry, error) {
	r := Default()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token list: %w", err)
	}
	var list TokenList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token list: %w", err)
	}
	for _, t := range list.Tokens {
		if err := r.Add(t); err != nil {
			return nil, fmt.Errorf("token list %s: %w", path, err)
		}
	}
	return r, nil
}

// Add registers a token, replacing any entry with the same chain and address.
func (r *Registry) Add(t types.Token) error {
	if !common.IsHexAddress(t.Address) {
		return fmt.Errorf("%w: %q", types.ErrInvalidAddress, t.Address)
	}
	if t.ChainID <= 0 {
		return fmt.Errorf("token %s: chain id required", t.Symbol)
	}
	t.Address = common.HexToAddress(t.Address).Hex()
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))

	for i, existing := range r.tokens {
		if existing.ChainID == t.ChainID && existing.Address == t.Address {
			r.tokens[i] = t
			return nil
		}
	}
	r.tokens = append(r.tokens, t)
	return nil
}

// Find resolves a symbol or hex address on chainID.
func (r *Registry) Find(symbolOrAddress string, chainID int) (types.Token, error) {
	query := strings.TrimSpace(symbolOrAddress)

	if common.IsHexAddress(query) {
		addr := common.HexToAddress(query).Hex()
		for _, t := range r.tokens {
			if t.ChainID == chainID && t.Address == addr {
				return t, nil
			}
		}
		return types.Token{}, fmt.Errorf("%w: address %s on chain %d", ErrTokenNotFound, addr, chainID)
	}

	symbol := CanonicalSymbol(query)
	for _, t := range r.tokens {
		if t.ChainID == chainID && t.Symbol == symbol {
			return t, nil
		}
	}
	return types.Token{}, fmt.Errorf("%w: '%s' on chain %d", ErrTokenNotFound, symbol, chainID)
}

// List returns tokens on chainID sorted by symbol, or every token when chainID
// is 0.
func (r *Registry) List(chainID int) []types.Token {
	out := make([]types.Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		if chainID == 0 || t.ChainID == chainID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChainID != out[j].ChainID {
			return out[i].ChainID < out[j].ChainID
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Chains returns the chain ids present in the registry.
func (r *Registry) Chains() []int {
	seen := make(map[int]bool)
	var chains []int
	for _, t := range r.tokens {
		if !seen[t.ChainID] {
			seen[t.ChainID] = true
			chains = append(chains, t.ChainID)
		}
	}
	sort.Ints(chains)
	return chains
}
