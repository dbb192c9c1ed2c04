package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sigillo.dev/sigillo/commitment"
	"sigillo.dev/sigillo/config"
	"sigillo.dev/sigillo/custody"
	"sigillo.dev/sigillo/docstore"
	"sigillo.dev/sigillo/notary"
	"sigillo.dev/sigillo/server"
	"sigillo.dev/sigillo/wallet"
)

func main() {
	fs := flag.NewFlagSet("sigillod", flag.ExitOnError)
	configPath := fs.String("config", "sigillod.json", "path to configuration file")
	listen := fs.String("listen", "", "listen address (overrides config)")
	dataDir := fs.String("data-dir", "", "data directory (overrides config)")
	_ = fs.Parse(os.Args[1:])

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	store, err := docstore.New(cfg.DataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	states, err := wallet.NewStateStore(cfg.StateDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	orch, err := notary.New(notary.Config{
		Store:   store,
		Builder: &commitment.Builder{PublicBaseURL: cfg.PublicBaseURL},
		NewService: func() (wallet.Service, error) {
			return custody.New(custody.Config{
				BaseURL:   cfg.Custody.BaseURL,
				HSMID:     cfg.Custody.HSMID,
				AlgodID:   cfg.Custody.AlgodID,
				IndexerID: cfg.Custody.IndexerID,
				Logger:    logger,
			})
		},
		States:   states,
		Email:    cfg.Custody.Email,
		Password: cfg.Custody.Password,
		Network:  cfg.EnabledNetwork(),
		Funding:  cfg.FundingPolicy(),
		Logger:   logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	queue := notary.NewQueue(orch, 64, logger)
	queue.Start()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(store, orch, queue, logger).Router(),
	}

	go func() {
		logger.Info("sigillod listening", "addr", cfg.ListenAddr, "data", cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	queue.Stop()
}
