package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"swap-quoter/pkg/tokens"
)

// QuoteCommand is a parsed "<amount> <token> to <token>" phrase. Amount is in
// human units; tokens are symbols or addresses.
type QuoteCommand struct {
	Amount   string
	TokenIn  string
	TokenOut string
}

// Pattern: <amount> <token> TO <token>
// Matches: "1 WETH TO USDC", "1.5 ETH TO DAI", "100 USDC TO 0xC02a..."
var quotePattern = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?|\.\d+)\s+([A-Z0-9.]+|0X[0-9A-F]{40})\s+(?:TO|FOR|->)\s+([A-Z0-9.]+|0X[0-9A-F]{40})$`)

// ParseQuoteCommand parses a natural language quote command
// Examples:
//   - "quote 1 WETH to USDC"
//   - "1.5 ETH to DAI"
//   - "100 USDC for 0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
func ParseQuoteCommand(command string) (*QuoteCommand, error) {
	command = strings.Join(strings.Fields(command), " ")

	// Remove the word "QUOTE" if present at the beginning
	if len(command) > 6 && strings.EqualFold(command[:6], "quote ") {
		command = command[6:]
	}

	matches := quotePattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid quote command format. Expected: '<amount> <token> to <token>' (e.g., '1.5 USDC to WETH')")
	}

	cmd := &QuoteCommand{
		Amount:   matches[1],
		TokenIn:  NormalizeToken(matches[2]),
		TokenOut: NormalizeToken(matches[3]),
	}
	if err := ValidateQuoteCommand(cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

// ValidateQuoteCommand validates that a command has all required fields
func ValidateQuoteCommand(cmd *QuoteCommand) error {
	if cmd.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if cmd.TokenIn == "" {
		return fmt.Errorf("source token is required")
	}
	if cmd.TokenOut == "" {
		return fmt.Errorf("destination token is required")
	}
	if strings.EqualFold(cmd.TokenIn, cmd.TokenOut) {
		return fmt.Errorf("source and destination token are the same (%s)", cmd.TokenIn)
	}
	return nil
}

// NormalizeToken upper-cases symbols, resolves aliases and checksums
// addresses.
func NormalizeToken(token string) string {
	token = strings.TrimSpace(token)
	if common.IsHexAddress(token) {
		return common.HexToAddress(token).Hex()
	}
	return tokens.CanonicalSymbol(token)
}
