package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/models"
)

type disputeRepository struct {
	*DB
	logger *logger.Logger
}

func NewDisputeRepository(db *DB, logger *logger.Logger) DisputeRepository {
	return &disputeRepository{DB: db, logger: logger}
}

func (d *disputeRepository) SaveDispute(ctx context.Context, dispute models.Dispute) error {
	_, err := d.ExecContext(ctx, saveDispute,
		dispute.DisputeID,
		dispute.OrderID,
		dispute.Kind,
		dispute.Status,
		dispute.InitiatorPubkey,
		dispute.BuyerPubkey,
		dispute.SellerPubkey,
		dispute.PaymentMethod,
		dispute.Amount,
		dispute.FiatCode,
		dispute.FiatAmount,
		dispute.Premium,
		dispute.Fee,
		dispute.RoutingFee,
		dispute.BuyerInvoice,
		dispute.TakenAt,
		dispute.CreatedAt,
	)
	if err != nil {
		d.logger.Err(err).
			Str("func", "disputeRepository.SaveDispute").
			Str("dispute_id", dispute.DisputeID).
			Msg("failed to upsert dispute")
		return fmt.Errorf("failed to save dispute %s: %w", dispute.DisputeID, err)
	}
	return nil
}

func (d *disputeRepository) GetDisputes(ctx context.Context) ([]models.Dispute, error) {
	rows, err := d.QueryContext(ctx, getDisputes)
	if err != nil {
		d.logger.Err(err).Str("func", "disputeRepository.GetDisputes").Msg("failed to query disputes")
		return nil, fmt.Errorf("failed to query disputes: %w", err)
	}
	defer rows.Close()

	var disputes []models.Dispute
	for rows.Next() {
		dispute, err := scanDispute(rows.Scan)
		if err != nil {
			return nil, err
		}
		disputes = append(disputes, dispute)
	}
	return disputes, rows.Err()
}

func (d *disputeRepository) GetDispute(ctx context.Context, disputeID string) (models.Dispute, error) {
	row := d.QueryRowContext(ctx, getDispute, disputeID)
	dispute, err := scanDispute(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Dispute{}, ErrNotFound
	}
	if err != nil {
		d.logger.Err(err).
			Str("func", "disputeRepository.GetDispute").
			Str("dispute_id", disputeID).
			Msg("failed to query dispute")
		return models.Dispute{}, err
	}
	return dispute, nil
}

func (d *disputeRepository) SetDisputeStatus(ctx context.Context, disputeID, status string) error {
	_, err := d.ExecContext(ctx, setDisputeStatus, status, disputeID)
	if err != nil {
		d.logger.Err(err).
			Str("func", "disputeRepository.SetDisputeStatus").
			Str("dispute_id", disputeID).
			Msg("failed to update dispute status")
		return fmt.Errorf("failed to update dispute %s: %w", disputeID, err)
	}
	return nil
}

func scanDispute(scan func(dest ...any) error) (models.Dispute, error) {
	var dispute models.Dispute
	err := scan(
		&dispute.DisputeID,
		&dispute.OrderID,
		&dispute.Kind,
		&dispute.Status,
		&dispute.InitiatorPubkey,
		&dispute.BuyerPubkey,
		&dispute.SellerPubkey,
		&dispute.PaymentMethod,
		&dispute.Amount,
		&dispute.FiatCode,
		&dispute.FiatAmount,
		&dispute.Premium,
		&dispute.Fee,
		&dispute.RoutingFee,
		&dispute.BuyerInvoice,
		&dispute.TakenAt,
		&dispute.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Dispute{}, err
		}
		return models.Dispute{}, fmt.Errorf("failed to scan dispute row: %w", err)
	}
	return dispute, nil
}
