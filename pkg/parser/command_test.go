package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuoteCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *QuoteCommand
		wantErr bool
	}{
		{
			name:  "simple",
			input: "1.5 USDC to WETH",
			want:  &QuoteCommand{Amount: "1.5", TokenIn: "USDC", TokenOut: "WETH"},
		},
		{
			name:  "quote prefix and lower case",
			input: "quote 100 usdc to dai",
			want:  &QuoteCommand{Amount: "100", TokenIn: "USDC", TokenOut: "DAI"},
		},
		{
			name:  "aliases",
			input: "1 ETH to BTC",
			want:  &QuoteCommand{Amount: "1", TokenIn: "WETH", TokenOut: "WBTC"},
		},
		{
			name:  "extra whitespace and for",
			input: "  2   DAI   for  USDT ",
			want:  &QuoteCommand{Amount: "2", TokenIn: "DAI", TokenOut: "USDT"},
		},
		{
			name:  "address is checksummed",
			input: "0.25 USDC to 0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
			want:  &QuoteCommand{Amount: "0.25", TokenIn: "USDC", TokenOut: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"},
		},
		{
			name:  "leading dot amount",
			input: ".5 WETH to USDC",
			want:  &QuoteCommand{Amount: ".5", TokenIn: "WETH", TokenOut: "USDC"},
		},
		{name: "missing to", input: "1 USDC WETH", wantErr: true},
		{name: "negative amount", input: "-1 USDC to WETH", wantErr: true},
		{name: "no amount", input: "USDC to WETH", wantErr: true},
		{name: "same token", input: "1 WETH to eth", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuoteCommand(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "USDC", NormalizeToken(" usdc "))
	assert.Equal(t, "WETH", NormalizeToken("eth"))
	assert.Equal(t, "UNI", NormalizeToken("UNI"))
	assert.Equal(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", NormalizeToken("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"))
}
