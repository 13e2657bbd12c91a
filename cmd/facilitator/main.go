package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/x402-solana/facilitator-go/chain"
	"github.com/x402-solana/facilitator-go/facilitator"
	"github.com/x402-solana/facilitator-go/logger"
	"github.com/x402-solana/facilitator-go/metrics"
	"github.com/x402-solana/facilitator-go/schemes/spl"
	"github.com/x402-solana/facilitator-go/schemes/transfer"
	"github.com/x402-solana/facilitator-go/types"
)

func main() {
	// Load .env if present; plain env vars otherwise.
	_ = godotenv.Load()

	cfg := loadConfig()
	log := logger.NewZapLogger(cfg.LogLevel)

	var recorder metrics.Recorder = metrics.NewPrometheusRecorder()

	f := facilitator.New(
		facilitator.WithLogger(log),
		facilitator.WithMetrics(recorder),
	)

	networks := []types.Network{
		types.NetworkMainnet,
		types.NetworkDevnet,
		types.NetworkTestnet,
	}
	for _, network := range networks {
		adapter := chain.NewAdapter(network, chain.RPCURL(network), log)
		f.RegisterChain(adapter)
		f.Register(transfer.New(network, adapter, log))
		f.Register(spl.New(network, adapter, log))
	}

	server := facilitator.NewServer(f, log)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("facilitator listening", map[string]any{
			"port": cfg.Port,
			"env":  cfg.Env,
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", map[string]any{"error": err.Error()})
	}
}
