// Package app wires the client together: config, logger, sqlite store, key
// derivation, relay pool, services, background workers and the terminal UI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/MostroP2P/mostrix/internal/attachment"
	"github.com/MostroP2P/mostrix/internal/chatsync"
	"github.com/MostroP2P/mostrix/internal/config"
	"github.com/MostroP2P/mostrix/internal/correlate"
	"github.com/MostroP2P/mostrix/internal/envelope"
	"github.com/MostroP2P/mostrix/internal/keyring"
	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/internal/recovery"
	"github.com/MostroP2P/mostrix/internal/relay"
	"github.com/MostroP2P/mostrix/internal/service"
	"github.com/MostroP2P/mostrix/internal/store"
	"github.com/MostroP2P/mostrix/internal/tui"
	"github.com/MostroP2P/mostrix/internal/workers"
)

type App struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *store.DB
	transport relay.Client
	recovery  *recovery.Engine
	jobs      *workers.Workers
	ui        *tui.TUI
}

// New builds the full dependency graph. On first run it generates and
// persists a new seed phrase; afterwards all keys are re-derived from the
// stored one.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := store.NewConnectSQLite(ctx, cfg.DBPath(), log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	repos := store.NewRepositories(db, log)

	deriver, err := loadDeriver(ctx, repos.UserRepository, log)
	if err != nil {
		return nil, err
	}
	identity, err := deriver.IdentityKeys()
	if err != nil {
		return nil, fmt.Errorf("derive identity keys: %w", err)
	}

	var admin *keyring.Keys
	if cfg.IsAdmin() {
		if admin, err = keyring.KeysFromHex(cfg.AdminPrivkey); err != nil {
			return nil, fmt.Errorf("parse admin key: %w", err)
		}
	}

	transport, err := relay.Connect(ctx, cfg.Relays, log)
	if err != nil {
		return nil, fmt.Errorf("connect relays: %w", err)
	}

	opts := envelope.Options{PoW: int(cfg.PoW)}
	if cfg.FullPrivacy {
		opts.Mode = envelope.ModeFullPrivacy
	}

	correlator := correlate.New(transport, cfg.RequestTimeout, log)
	services := service.New(deriver, identity, admin, transport, correlator, repos, cfg.CoordinatorPubkey, opts, log)

	book := workers.NewOrderBookPoller(transport, cfg.CoordinatorPubkey, cfg.OrderPollInterval, log)
	book.FilterCurrencies(cfg.Currencies)
	listener := workers.NewOrderMessageListener(deriver, transport, repos.TradeRepository, cfg.ChatPollInterval, log)
	jobs := []workers.Worker{book, listener}

	var syncer *chatsync.Syncer
	if admin != nil {
		syncer = chatsync.New(admin, transport, repos.DisputeRepository, repos.ChatRepository, cfg.TranscriptsDir(), log)
		if err = syncer.Restore(); err != nil {
			log.Err(err).Msg("cannot replay chat transcripts")
		}
		jobs = append(jobs, workers.NewChatFetchJob(syncer, cfg.ChatPollInterval, log))
	}

	ui := tui.New(tui.Deps{
		Orders:   services.Order,
		Admin:    services.Admin,
		Book:     book,
		Listener: listener,
		Chat:     syncer,
		Attach:   attachment.NewFetcher(cfg.DownloadsDir(), log),
	}, log)

	return &App{
		cfg:       cfg,
		log:       log,
		db:        db,
		transport: transport,
		recovery:  recovery.New(deriver, transport, repos.TradeRepository, log),
		jobs:      workers.NewWorkers(jobs...),
		ui:        ui,
	}, nil
}

// Run recovers active trades from the relays, starts the background jobs
// and blocks in the UI until the user quits.
func (a *App) Run(ctx context.Context) error {
	recovered := a.recovery.Recover(ctx)
	a.log.Info().Int("trades", len(recovered)).Msg("trade recovery finished")

	a.jobs.StartAll(ctx)
	defer a.jobs.StopAll()

	err := a.ui.Run(ctx)

	a.transport.Close()
	if closeErr := a.db.Close(); closeErr != nil {
		a.log.Err(closeErr).Msg("cannot close database")
	}
	return err
}

// loadDeriver restores the stored seed phrase, creating one on first run.
func loadDeriver(ctx context.Context, users store.UserRepository, log *logger.Logger) (*keyring.Deriver, error) {
	mnemonic, err := users.GetMnemonic(ctx)
	if errors.Is(err, store.ErrNoUser) {
		if mnemonic, err = keyring.GenerateMnemonic(); err != nil {
			return nil, fmt.Errorf("generate mnemonic: %w", err)
		}
		if err = users.CreateUser(ctx, mnemonic); err != nil {
			return nil, fmt.Errorf("persist mnemonic: %w", err)
		}
		log.Info().Msg("generated new seed phrase")
	} else if err != nil {
		return nil, fmt.Errorf("load mnemonic: %w", err)
	}

	return keyring.NewDeriver(mnemonic)
}
