package types

import (
	"fmt"
	"math/big"
	"strings"
)

// ToBaseUnits converts a human amount such as "1.5" into the token's smallest
// unit ("1500000" for 6 decimals). The conversion is exact; amounts with more
// fractional digits than the token supports are rejected.
func ToBaseUnits(amount string, decimals uint8) (string, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	whole, frac, hasDot := strings.Cut(amount, ".")
	if whole == "" && hasDot {
		whole = "0"
	}
	if !isDigits(whole) || (hasDot && frac != "" && !isDigits(frac)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	frac = strings.TrimRight(frac, "0")
	if len(frac) > int(decimals) {
		return "", fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, amount, decimals)
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		digits = "0"
	}
	if err := ValidateBaseUnits(digits); err != nil {
		return "", err
	}
	return digits, nil
}

// FromBaseUnits renders a base-unit integer with the token's decimals,
// trimming trailing zeros ("1500000", 6 -> "1.5").
func FromBaseUnits(base string, decimals uint8) string {
	base = strings.TrimLeft(base, "0")
	if base == "" {
		return "0"
	}
	d := int(decimals)
	if d == 0 {
		return base
	}
	if len(base) <= d {
		base = strings.Repeat("0", d-len(base)+1) + base
	}
	whole, frac := base[:len(base)-d], strings.TrimRight(base[len(base)-d:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// Rate returns how many output tokens one input token buys, with 8 decimals.
func Rate(amountIn string, decimalsIn uint8, amountOut string, decimalsOut uint8) (string, error) {
	in, ok := new(big.Rat).SetString(FromBaseUnits(amountIn, decimalsIn))
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, amountIn)
	}
	out, ok := new(big.Rat).SetString(FromBaseUnits(amountOut, decimalsOut))
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, amountOut)
	}
	if in.Sign() == 0 {
		return "", fmt.Errorf("%w: zero input amount", ErrInvalidAmount)
	}
	return new(big.Rat).Quo(out, in).FloatString(8), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
