package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/models"
)

type tradeRepository struct {
	*DB
	logger *logger.Logger
}

func NewTradeRepository(db *DB, logger *logger.Logger) TradeRepository {
	return &tradeRepository{DB: db, logger: logger}
}

func (t *tradeRepository) SaveTrade(ctx context.Context, orderID string, tradeIndex int64, status models.Status, requestID *uint64) error {
	var reqID sql.NullInt64
	if requestID != nil {
		reqID = sql.NullInt64{Int64: int64(*requestID), Valid: true}
	}
	_, err := t.ExecContext(ctx, saveTrade, orderID, tradeIndex, string(status), reqID, time.Now().Unix())
	if err != nil {
		t.logger.Err(err).
			Str("func", "tradeRepository.SaveTrade").
			Str("order_id", orderID).
			Int64("trade_index", tradeIndex).
			Msg("failed to upsert trade")
		return fmt.Errorf("failed to save trade %s: %w", orderID, err)
	}
	return nil
}

func (t *tradeRepository) GetActiveTrades(ctx context.Context) ([]models.TradeRecord, error) {
	rows, err := t.QueryContext(ctx, getActiveTrades)
	if err != nil {
		t.logger.Err(err).Str("func", "tradeRepository.GetActiveTrades").Msg("failed to query active trades")
		return nil, fmt.Errorf("failed to query active trades: %w", err)
	}
	defer rows.Close()

	var records []models.TradeRecord
	for rows.Next() {
		var rec models.TradeRecord
		if err = rows.Scan(&rec.OrderID, &rec.TradeIndex); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (t *tradeRepository) ApplySnapshot(ctx context.Context, snap models.TradeSnapshot) error {
	var satAmount sql.NullInt64
	if snap.SatAmount != nil {
		satAmount = sql.NullInt64{Int64: *snap.SatAmount, Valid: true}
	}
	var invoice sql.NullString
	if snap.BuyerInvoice != nil {
		invoice = sql.NullString{String: *snap.BuyerInvoice, Valid: true}
	}
	_, err := t.ExecContext(ctx, applyTradeSnapshot,
		string(snap.Status),
		string(snap.LastAction),
		snap.Counterparty,
		satAmount,
		invoice,
		snap.UpdatedAt,
		snap.OrderID,
	)
	if err != nil {
		t.logger.Err(err).
			Str("func", "tradeRepository.ApplySnapshot").
			Str("order_id", snap.OrderID).
			Msg("failed to apply trade snapshot")
		return fmt.Errorf("failed to apply snapshot for %s: %w", snap.OrderID, err)
	}
	return nil
}

func (t *tradeRepository) GetSnapshot(ctx context.Context, orderID string) (models.TradeSnapshot, error) {
	var (
		snap      models.TradeSnapshot
		satAmount sql.NullInt64
		invoice   sql.NullString
	)
	err := t.QueryRowContext(ctx, getTradeSnapshot, orderID).Scan(
		&snap.OrderID,
		&snap.TradeIndex,
		&snap.Status,
		&snap.LastAction,
		&snap.Counterparty,
		&satAmount,
		&invoice,
		&snap.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TradeSnapshot{}, ErrNotFound
	}
	if err != nil {
		t.logger.Err(err).
			Str("func", "tradeRepository.GetSnapshot").
			Str("order_id", orderID).
			Msg("failed to query trade snapshot")
		return models.TradeSnapshot{}, fmt.Errorf("failed to query snapshot for %s: %w", orderID, err)
	}
	if satAmount.Valid {
		snap.SatAmount = &satAmount.Int64
	}
	if invoice.Valid {
		snap.BuyerInvoice = &invoice.String
	}
	return snap, nil
}
