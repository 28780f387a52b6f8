package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"swap-quoter/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve quotes over HTTP",
	Long: `Start an HTTP server exposing quotes, the token list and metrics.

Endpoints:
  GET /quote?tokenIn=USDC&tokenOut=WETH&amount=1.5&chainId=1&type=exactIn&clientSide=false
  GET /tokens?chainId=1&symbol=USD
  GET /healthz
  GET /metrics

Examples:
  swap-quoter serve
  swap-quoter serve --addr 127.0.0.1:9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.ServerAddr
	}

	srv := &http.Server{
		Addr: addr,
		Handler: server.New(server.Config{
			Quotes:         a.queries,
			Tokens:         a.tokens,
			Gatherer:       a.registry,
			Logger:         a.logger,
			RequestTimeout: a.cfg.QuoteTimeout(),
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
