package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"swap-quoter/pkg/parser"
	"swap-quoter/pkg/quote"
	"swap-quoter/pkg/tokens"
	"swap-quoter/pkg/types"
)

var (
	quoteChain    int
	exactOut      bool
	clientSide    bool
	rawOutput     bool
	watchQuote    bool
	watchInterval int
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Get a swap quote",
	Long: `Get a quote for swapping one token into another on the same chain.

By default the quote comes from the remote routing service. With --client-side
it is computed locally from the configured pool snapshot (pools_file).

Examples:
  # Sell exactly 1.5 USDC for WETH
  swap-quoter quote 1.5 USDC to WETH

  # Buy exactly 1 WETH with DAI, computed locally
  swap-quoter quote 1 DAI to WETH --exact-out --client-side

  # Use a token address and another chain
  swap-quoter quote 100 USDC to 0x82aF49447D8a07e3bd95BD0d56f35241523fBab1 --chain 42161

  # Re-quote every 10 seconds
  swap-quoter quote 1 WETH to USDC --watch --interval 10`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().IntVar(&quoteChain, "chain", 1, "Chain id both tokens live on")
	quoteCmd.Flags().BoolVar(&exactOut, "exact-out", false, "Treat the amount as the exact output to receive")
	quoteCmd.Flags().BoolVar(&clientSide, "client-side", false, "Compute the quote with the local router")
	quoteCmd.Flags().BoolVar(&rawOutput, "raw", false, "Print the quote payload exactly as received")
	quoteCmd.Flags().BoolVarP(&watchQuote, "watch", "w", false, "Re-quote continuously")
	quoteCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runQuote(cmd *cobra.Command, args []string) {
	// Parse the command
	parsed, err := parser.ParseQuoteCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	tradeType := types.ExactIn
	if exactOut {
		tradeType = types.ExactOut
	}
	req, err := quote.BuildRequest(a.tokens, quote.Order{
		TokenIn:    parsed.TokenIn,
		TokenOut:   parsed.TokenOut,
		Amount:     parsed.Amount,
		ChainID:    quoteChain,
		Type:       tradeType,
		ClientSide: clientSide,
	})
	if err != nil {
		if errors.Is(err, tokens.ErrTokenNotFound) {
			err = fmt.Errorf("%w (try: swap-quoter list-tokens --chain %d)", err, quoteChain)
		}
		printError(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if watchQuote {
		if jsonOutput || rawOutput {
			fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
			os.Exit(1)
		}
		watchQuotes(ctx, a, req)
		return
	}

	if !showQuote(ctx, a, req, jsonOutput) {
		os.Exit(1)
	}
}

// showQuote fetches and prints one quote, reporting whether it succeeded.
func showQuote(ctx context.Context, a *app, req types.TradeRequest, jsonOutput bool) bool {
	quiet := jsonOutput || rawOutput

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !quiet {
		s.Suffix = fmt.Sprintf(" Fetching quote (%s)...", quote.StrategyFor(req))
		s.Start()
	}

	res := a.queries.Fetch(ctx, req)
	if !quiet {
		s.Stop()
	}

	data, err := res.Unpack()
	if err != nil {
		var qe *quote.QuoteError
		switch {
		case !errors.As(err, &qe):
			printError(err)
		case jsonOutput:
			printJSONError(qe)
		default:
			printQuoteError(qe)
		}
		return false
	}

	if rawOutput {
		fmt.Println(string(data.Payload))
		return true
	}

	display, err := quote.Display(req, data)
	if err != nil {
		printError(err)
		return false
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(display, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayQuote(display)
	}
	return true
}

func watchQuotes(ctx context.Context, a *app, req types.TradeRequest) {
	fmt.Printf("\nWatching %s -> %s quote (%s)\n",
		color.YellowString(req.TokenIn.Symbol), color.YellowString(req.TokenOut.Symbol), quote.StrategyFor(req))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	q := a.queries.NewQuery()

	// Check immediately first
	checkAndDisplayQuote(ctx, q, req)

	// Then check periodically
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped.")
			return
		case <-ticker.C:
			checkAndDisplayQuote(ctx, q, req)
		}
	}
}

func checkAndDisplayQuote(ctx context.Context, q *quote.Query, req types.TradeRequest) {
	state, current := q.Run(ctx, req)
	if !current || ctx.Err() != nil {
		return
	}
	if state.Err != nil {
		color.Red("[%s] Error: %v", time.Now().Format("15:04:05"), state.Err)
		return
	}

	display, err := quote.Display(req, *state.Data)
	if err != nil {
		color.Red("[%s] Error: %v", time.Now().Format("15:04:05"), err)
		return
	}
	fmt.Printf("[%s] %s %s -> %s %s  (rate %s)\n",
		time.Now().Format("15:04:05"),
		display.SourceAmount, display.SourceToken,
		color.GreenString(display.DestAmount), display.DestToken,
		display.Rate)
}

func displayQuote(d types.QuoteDisplay) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	prefixIn, prefixOut := "", "~"
	if d.TradeType == string(types.ExactOut) {
		prefixIn, prefixOut = "~", ""
	}
	fmt.Printf("\n  From:              %s%s %s\n", prefixIn, d.SourceAmount, color.YellowString(d.SourceToken))
	fmt.Printf("  To:                %s%s %s\n", prefixOut, d.DestAmount, color.YellowString(d.DestToken))
	fmt.Printf("  Rate:              1 %s = %s %s\n", d.SourceToken, d.Rate, d.DestToken)
	fmt.Printf("  Chain:             %d\n", d.ChainID)
	fmt.Printf("  Router:            %s\n", color.CyanString(d.Router))
	if d.GasUSD != "" {
		fmt.Printf("  Gas (USD):         %s\n", d.GasUSD)
	}
	if d.Route != "" {
		fmt.Printf("  Route:             %s\n", color.HiBlackString(d.Route))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func printQuoteError(err *quote.QuoteError) {
	switch {
	case quote.IsNoRoute(err):
		color.Red("\nNo route found for this pair.")
		if err.Strategy == quote.StrategyLocal {
			color.Yellow("The local pool snapshot has no path between these tokens; try without --client-side.\n")
		}
	case err.Kind == quote.KindTransport:
		color.Red("\nRouting service unreachable after %d attempt(s).", err.Attempts)
	}
	printError(err)
}

func printJSONError(err *quote.QuoteError) {
	out := map[string]any{
		"kind":     err.Kind,
		"strategy": err.Strategy,
		"message":  err.Error(),
		"attempts": err.Attempts,
	}
	if apiErr, ok := err.APIError(); ok {
		out["code"] = apiErr.ErrorCode
	}
	jsonData, _ := json.MarshalIndent(map[string]any{"error": out}, "", "  ")
	fmt.Println(string(jsonData))
}
