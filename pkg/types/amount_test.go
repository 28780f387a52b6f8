package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	testCases := []struct {
		amount   string
		decimals uint8
		expected string
		wantErr  bool
	}{
		{"1", 6, "1000000", false},
		{"1.5", 6, "1500000", false},
		{"0.000001", 6, "1", false},
		{".25", 2, "25", false},
		{"2.50000", 2, "250", false},
		{"100", 0, "100", false},
		{"0", 18, "0", false},
		{"0.0000001", 6, "", true},
		{"1,5", 6, "", true},
		{"-1", 6, "", true},
		{"", 6, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.amount, func(t *testing.T) {
			got, err := ToBaseUnits(tc.amount, tc.decimals)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestFromBaseUnits(t *testing.T) {
	assert.Equal(t, "1.5", FromBaseUnits("1500000", 6))
	assert.Equal(t, "0.0005", FromBaseUnits("500", 6))
	assert.Equal(t, "2", FromBaseUnits("2000000000000000000", 18))
	assert.Equal(t, "0", FromBaseUnits("000", 6))
	assert.Equal(t, "42", FromBaseUnits("42", 0))
}

func TestRate(t *testing.T) {
	// 2000 USDC -> 1 WETH
	rate, err := Rate("2000000000", 6, "1000000000000000000", 18)
	require.NoError(t, err)
	assert.Equal(t, "0.00050000", rate)

	_, err = Rate("0", 6, "1", 18)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
