package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MostroP2P/mostrix/internal/app"
	"github.com/MostroP2P/mostrix/internal/config"
	"github.com/MostroP2P/mostrix/internal/logger"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrNoCoordinator) {
			fmt.Fprintln(os.Stderr, "no coordinator configured: set MOSTRIX_COORDINATOR_PUBKEY or coordinator_pubkey in config.json")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("client", cfg.DataDir, cfg.LogLevel)
	log.Info().
		Str("version", orNA(buildVersion)).
		Str("date", orNA(buildDate)).
		Str("commit", orNA(buildCommit)).
		Msg("starting mostrix")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Err(err).Msg("init error")
		fmt.Fprintf(os.Stderr, "init error: %v\n", err)
		os.Exit(1)
	}

	if err = a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Err(err).Msg("run error")
		fmt.Fprintf(os.Stderr, "run error: %v\n", err)
		os.Exit(1)
	}
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}
