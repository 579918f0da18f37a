// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/toolscout/internal/history"
	"github.com/pdiddy/toolscout/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the research API over HTTP",
	Long: `Serve exposes research sessions over HTTP:

  POST /v1/research        run a session: {"query": "..."}
  GET  /v1/sessions        list stored sessions (?q=, ?stage=, ?limit=)
  GET  /v1/sessions/:id    fetch a stored report
  GET  /v1/analyze?q=...   classify a query and show its search queries
  GET  /metrics            Prometheus metrics
  GET  /healthz            liveness`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := creds.Validate(); err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	logger, err := newLogger(cmd, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(ctx, cfg, io.Discard, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	store, err := history.Open(cfg.History, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("starting server",
		zap.String("addr", cfg.Server.Addr),
		zap.Strings("search_tiers", p.strategy.Tiers()),
	)
	return server.New(p.machine, store, logger).ListenAndServe(ctx, cfg.Server.Addr)
}
