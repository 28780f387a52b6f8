package router

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-quoter/pkg/types"
)

const (
	usdcAddr = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	wethAddr = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	daiAddr  = "0x6B175474E89094C44Da98b954EedeAC495271d0F"

	directPool = "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"
	usdcDai    = "0xAE461cA67B15dc8dc81CE7615e0320dA1A9aB8D5"
	daiWeth    = "0xA478c2975Ab1Ea89e8196811F51A7B7Ade33eB11"
)

// newBigIntFromString is a helper for numbers larger than int64.
func newBigIntFromString(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("failed to set string for big.Int")
	}
	return n
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var allProtocols = types.RouterOptions{Protocols: []types.Protocol{types.ProtocolV2, types.ProtocolV3}}

func routeRequest(tradeType types.TradeType, amount string) types.RouteRequest {
	return types.RouteRequest{
		Type:     tradeType,
		ChainID:  1,
		TokenIn:  types.RouteToken{Address: usdcAddr, ChainID: 1, Decimals: 6},
		TokenOut: types.RouteToken{Address: wethAddr, ChainID: 1, Decimals: 18},
		Amount:   amount,
	}
}

// shallow direct pool plus a deep USDC -> DAI -> WETH path
func mixedPools(t *testing.T) []Pool {
	t.Helper()
	pools, err := ParsePools([]PoolSpec{
		{Address: directPool, ChainID: 1, Protocol: "v2", Token0: usdcAddr, Token1: wethAddr,
			Reserve0: "1000000000000", Reserve1: "100000000000000000000", FeeBps: 30},
		{Address: usdcDai, ChainID: 1, Token0: usdcAddr, Token1: daiAddr,
			Reserve0: "1000000000000", Reserve1: "1000000000000000000000000", FeeBps: 30},
		{Address: daiWeth, ChainID: 1, Token0: daiAddr, Token1: wethAddr,
			Reserve0: "2000000000000000000000000", Reserve1: "1000000000000000000000", FeeBps: 30},
	})
	require.NoError(t, err)
	return pools
}

func decode(t *testing.T, res types.QuoteResult) quotePayload {
	t.Helper()
	var p quotePayload
	require.NoError(t, json.Unmarshal(res.Payload, &p))
	return p
}

func TestPoolAmountOutAndIn(t *testing.T) {
	pool := Pool{
		Token0:   common.HexToAddress(usdcAddr),
		Token1:   common.HexToAddress(wethAddr),
		Reserve0: big.NewInt(100_000_000),
		Reserve1: newBigIntFromString("50000000000000000000"),
		FeeBps:   30,
	}

	out, err := pool.AmountOut(pool.Token0, big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Zero(t, newBigIntFromString("493579017198530649").Cmp(out), "got %s", out)

	in, err := pool.AmountIn(pool.Token0, newBigIntFromString("493579017198530649"))
	require.NoError(t, err)
	assert.Zero(t, big.NewInt(1_000_000).Cmp(in), "got %s", in)

	_, err = pool.AmountIn(pool.Token0, newBigIntFromString("50000000000000000000"))
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	empty := pool
	empty.Reserve0 = big.NewInt(0)
	out, err = empty.AmountOut(pool.Token0, big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Zero(t, out.Sign())
}

func TestGetQuoteDirectPool(t *testing.T) {
	pools, err := ParsePools([]PoolSpec{{
		Address: directPool, ChainID: 1, Token0: usdcAddr, Token1: wethAddr,
		Reserve0: "100000000", Reserve1: "50000000000000000000", FeeBps: 30,
	}})
	require.NoError(t, err)
	r := NewPoolRouter(pools, quietLogger())

	res, err := r.GetQuote(context.Background(), routeRequest(types.ExactIn, "1000000"), allProtocols)
	require.NoError(t, err)

	p := decode(t, res)
	assert.Equal(t, "1000000", p.Amount)
	assert.Equal(t, "1", p.AmountDecimals)
	assert.Equal(t, "493579017198530649", p.Quote)
	assert.Equal(t, "0.493579017198530649", p.QuoteDecimals)
	require.Len(t, p.Route, 1)
	require.Len(t, p.Route[0], 1)
	assert.Equal(t, "v2-pool", p.Route[0][0].Type)
	assert.Contains(t, p.RouteString, "[V2] 100.00%")
}

func TestGetQuotePicksBestRoute(t *testing.T) {
	r := NewPoolRouter(mixedPools(t), quietLogger())

	testCases := []struct {
		name          string
		tradeType     types.TradeType
		amount        string
		expectedQuote string
		expectedHops  int
	}{
		{
			name:          "exactIn through DAI beats shallow direct pool",
			tradeType:     types.ExactIn,
			amount:        "1000000000",
			expectedQuote: "496263080724214160",
			expectedHops:  2,
		},
		{
			name:          "exactOut through DAI needs less USDC",
			tradeType:     types.ExactOut,
			amount:        "100000000000000000",
			expectedQuote: "201265923",
			expectedHops:  2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := r.GetQuote(context.Background(), routeRequest(tc.tradeType, tc.amount), allProtocols)
			require.NoError(t, err)

			p := decode(t, res)
			assert.Equal(t, tc.amount, p.Amount)
			assert.Equal(t, tc.expectedQuote, p.Quote)
			require.Len(t, p.Route, 1)
			assert.Len(t, p.Route[0], tc.expectedHops)
		})
	}
}

func TestGetQuoteErrors(t *testing.T) {
	r := NewPoolRouter(mixedPools(t), quietLogger())

	unknown := routeRequest(types.ExactIn, "1000000")
	unknown.TokenOut.Address = "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"
	_, err := r.GetQuote(context.Background(), unknown, allProtocols)
	assert.ErrorIs(t, err, ErrNoRoute)

	_, err = r.GetQuote(context.Background(), routeRequest(types.ExactIn, "1000000"),
		types.RouterOptions{Protocols: []types.Protocol{types.ProtocolV3}})
	assert.ErrorIs(t, err, ErrNoRoute)

	_, err = r.GetQuote(context.Background(), routeRequest(types.ExactOut, "1000000000000000000000"), allProtocols)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	_, err = r.GetQuote(context.Background(), routeRequest(types.ExactIn, "0"), allProtocols)
	assert.ErrorIs(t, err, types.ErrInvalidAmount)

	otherChain := routeRequest(types.ExactIn, "1000000")
	otherChain.ChainID = 137
	_, err = r.GetQuote(context.Background(), otherChain, allProtocols)
	assert.ErrorIs(t, err, ErrNoRoute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.GetQuote(ctx, routeRequest(types.ExactIn, "1000000"), allProtocols)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParsePoolsRejectsBadEntries(t *testing.T) {
	testCases := []PoolSpec{
		{Address: "nope", ChainID: 1, Token0: usdcAddr, Token1: wethAddr, Reserve0: "1", Reserve1: "1"},
		{Address: directPool, ChainID: 0, Token0: usdcAddr, Token1: wethAddr, Reserve0: "1", Reserve1: "1"},
		{Address: directPool, ChainID: 1, Token0: usdcAddr, Token1: wethAddr, Reserve0: "-1", Reserve1: "1"},
		{Address: directPool, ChainID: 1, Token0: usdcAddr, Token1: usdcAddr, Reserve0: "1", Reserve1: "1"},
		{Address: directPool, ChainID: 1, Protocol: "v3", Token0: usdcAddr, Token1: wethAddr, Reserve0: "1", Reserve1: "1"},
		{Address: directPool, ChainID: 1, Token0: usdcAddr, Token1: wethAddr, Reserve0: "1", Reserve1: "1", FeeBps: 10000},
	}
	for _, spec := range testCases {
		_, err := ParsePools([]PoolSpec{spec})
		assert.ErrorIs(t, err, ErrInvalidPool, "spec %+v", spec)
	}
}

func TestLoadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.yaml")
	content := `pools:
  - address: "` + directPool + `"
    chain_id: 1
    protocol: v2
    token0: "` + usdcAddr + `"
    token1: "` + wethAddr + `"
    reserve0: "100000000"
    reserve1: "50000000000000000000"
    fee_bps: 30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	pools, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, common.HexToAddress(directPool), pools[0].Address)
	assert.Equal(t, uint16(30), pools[0].FeeBps)

	r := NewPoolRouter(pools, nil)
	assert.Equal(t, 1, r.PoolCount(1))
	assert.Equal(t, 1, r.PoolCount(0))

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
