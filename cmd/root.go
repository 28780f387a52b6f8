package cmd

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"swap-quoter/config"
	"swap-quoter/pkg/client"
	"swap-quoter/pkg/metrics"
	"swap-quoter/pkg/quote"
	"swap-quoter/pkg/retry"
	"swap-quoter/pkg/router"
	"swap-quoter/pkg/tokens"
)

var rootCmd = &cobra.Command{
	Use:   "swap-quoter",
	Short: "A CLI for token swap quotes",
	Long: `swap-quoter fetches swap quotes either from a remote routing service or
from a local router over a pool snapshot.

Examples:
  swap-quoter quote 1.5 USDC to WETH
  swap-quoter quote 1 WETH to DAI --exact-out --client-side
  swap-quoter list-tokens --chain 1
  swap-quoter serve --addr :8080`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// newLogger builds the operational logger. Logs go to stderr so stdout stays
// clean for quote output.
func newLogger(cmd *cobra.Command, cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	// CLI output is the quote itself; only surface warnings unless asked
	if cmd.Name() != "serve" && level > logrus.WarnLevel {
		level = logrus.WarnLevel
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

// app holds the wired quote stack shared by commands
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	tokens   *tokens.Registry
	resolver *quote.Resolver
	queries  *quote.QueryClient
	registry *prometheus.Registry
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg := config.Get()
	logger := newLogger(cmd, cfg)

	registry, err := tokens.Load(cfg.TokensFile)
	if err != nil {
		return nil, err
	}

	api, err := client.NewRoutingClient(cfg.ClientConfig(), nil, logger)
	if err != nil {
		return nil, err
	}
	remote := quote.NewRemoteQuoter(api, retry.New(cfg.RetryPolicy(), logger))

	var pools []router.Pool
	if cfg.PoolsFile != "" {
		if pools, err = router.LoadSnapshot(cfg.PoolsFile); err != nil {
			return nil, err
		}
	} else {
		logger.Debug("no pools_file configured, client-side quotes will find no route")
	}
	local := quote.NewLocalQuoter(router.NewPoolRouter(pools, logger))

	reg := prometheus.NewRegistry()
	resolver := quote.NewResolver(remote, local,
		quote.WithLogger(logger),
		quote.WithMetrics(metrics.New(reg)),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		tokens:   registry,
		resolver: resolver,
		queries:  quote.NewQueryClient(resolver, cfg.QuoteTimeout()),
		registry: reg,
	}, nil
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}
