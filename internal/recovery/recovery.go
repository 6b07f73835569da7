// Package recovery reconstructs trade state at startup from nothing but the
// seed phrase and the persisted (order id, trade index) pairs. No local
// message log exists: each trade's key is re-derived and its recent
// envelopes are fetched back from the relays, then folded to the latest
// decodable message.
package recovery

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/MostroP2P/mostrix/internal/envelope"
	"github.com/MostroP2P/mostrix/internal/keyring"
	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/internal/relay"
	"github.com/MostroP2P/mostrix/internal/store"
	"github.com/MostroP2P/mostrix/models"
)

// lookbackWindow bounds the relay query per trade.
const lookbackWindow = 7 * 24 * time.Hour

// perTradeTimeout isolates one slow relay query from the other trades.
const perTradeTimeout = 20 * time.Second

type Engine struct {
	deriver   *keyring.Deriver
	transport relay.Client
	trades    store.TradeRepository
	log       *logger.Logger
}

func New(deriver *keyring.Deriver, transport relay.Client, trades store.TradeRepository, log *logger.Logger) *Engine {
	return &Engine{deriver: deriver, transport: transport, trades: trades, log: log}
}

// Recover rebuilds and persists a snapshot for every active trade. Trades
// are recovered independently: one trade failing to fetch or decode never
// blocks the others. Records sharing a trade index are flagged and only the
// first is recovered; reusing an index means two orders share a key, which
// the protocol forbids.
func (e *Engine) Recover(ctx context.Context) []models.TradeSnapshot {
	records, err := e.trades.GetActiveTrades(ctx)
	if err != nil {
		e.log.Err(err).Str("func", "Engine.Recover").Msg("cannot list active trades")
		return nil
	}

	var snapshots []models.TradeSnapshot
	for _, rec := range dedupeByIndex(records, e.log) {
		snap, ok := e.recoverTrade(ctx, rec)
		if !ok {
			continue
		}
		if err = e.trades.ApplySnapshot(ctx, snap); err != nil {
			e.log.Err(err).
				Str("func", "Engine.Recover").
				Str("order_id", rec.OrderID).
				Msg("cannot persist recovered snapshot")
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

// recoverTrade re-derives one trade key, pulls its recent envelopes and
// folds them. ok is false when nothing decodable came back.
func (e *Engine) recoverTrade(ctx context.Context, rec models.TradeRecord) (models.TradeSnapshot, bool) {
	log := e.log.With().Str("order_id", rec.OrderID).Int64("trade_index", rec.TradeIndex).Logger()

	keys, err := e.deriver.TradeKeys(rec.TradeIndex)
	if err != nil {
		log.Err(err).Msg("cannot re-derive trade key")
		return models.TradeSnapshot{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, perTradeTimeout)
	defer cancel()

	since := nostr.Now() - nostr.Timestamp(lookbackWindow/time.Second)
	events, err := e.transport.Fetch(ctx, nostr.Filters{{
		Kinds: []int{nostr.KindGiftWrap},
		Tags:  nostr.TagMap{"p": []string{keys.PublicHex()}},
		Since: &since,
	}})
	if err != nil {
		log.Err(err).Msg("trade recovery fetch failed")
		return models.TradeSnapshot{}, false
	}

	var decoded []*envelope.Decoded
	for _, ev := range events {
		d, err := envelope.Decode(ev, keys)
		if err != nil {
			log.Debug().Err(err).Str("event", ev.ID).Msg("skipping undecodable envelope")
			continue
		}
		decoded = append(decoded, d)
	}

	snap, ok := Reduce(rec, decoded)
	if !ok {
		log.Debug().Int("events", len(events)).Msg("no decodable messages for trade")
	}
	return snap, ok
}

// dedupeByIndex drops records reusing an already seen trade index, loudly.
func dedupeByIndex(records []models.TradeRecord, log *logger.Logger) []models.TradeRecord {
	seen := make(map[int64]string, len(records))
	out := records[:0]
	for _, rec := range records {
		if first, dup := seen[rec.TradeIndex]; dup {
			log.Warn().
				Str("func", "recovery.dedupeByIndex").
				Int64("trade_index", rec.TradeIndex).
				Str("order_id", rec.OrderID).
				Str("first_order_id", first).
				Msg("trade index reused across orders, skipping record")
			continue
		}
		seen[rec.TradeIndex] = rec.OrderID
		out = append(out, rec)
	}
	return out
}
