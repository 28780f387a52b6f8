package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"swap-quoter/config"
	"swap-quoter/pkg/tokens"
	"swap-quoter/pkg/types"
)

var (
	filterChain  int
	filterSymbol string
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List all known tokens",
	Long: `List the tokens that can be quoted by symbol: the built-in list plus
any tokens from the configured tokens_file.

You can filter tokens by chain id or symbol.

Examples:
  swap-quoter list-tokens
  swap-quoter list-tokens --chain 42161
  swap-quoter list-tokens --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().IntVar(&filterChain, "chain", 0, "Filter by chain id")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg := config.Get()

	registry, err := tokens.Load(cfg.TokensFile)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := filterTokens(registry.List(filterChain), filterSymbol)

	// Output
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(filtered)
	}
}

func filterTokens(list []types.Token, symbol string) []types.Token {
	if symbol == "" {
		return list
	}
	var out []types.Token
	for _, token := range list {
		if strings.Contains(token.Symbol, strings.ToUpper(symbol)) {
			out = append(out, token)
		}
	}
	return out
}

func displayTokens(list []types.Token) {
	if len(list) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                         KNOWN TOKENS")
	fmt.Println(strings.Repeat("=", 70))

	// List is sorted by chain, then symbol
	chains := 0
	for i, token := range list {
		if i == 0 || list[i-1].ChainID != token.ChainID {
			chains++
			color.Cyan("\nCHAIN %d", token.ChainID)
			fmt.Println(strings.Repeat("-", 70))
		}
		fmt.Printf("  %-10s  %2d decimals  %s\n",
			color.YellowString(token.Symbol),
			token.Decimals,
			color.HiBlackString(token.Address))
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Printf("\nTotal: %d tokens across %d chains\n\n", len(list), chains)
}
