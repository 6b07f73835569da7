package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/models"
)

type chatRepository struct {
	*DB
	logger *logger.Logger
}

func NewChatRepository(db *DB, logger *logger.Logger) ChatRepository {
	return &chatRepository{DB: db, logger: logger}
}

func (c *chatRepository) GetChatCursor(ctx context.Context, disputeID string, party models.ChatParty) (int64, bool, error) {
	var lastSeen int64
	err := c.QueryRowContext(ctx, getChatCursor, disputeID, string(party)).Scan(&lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		c.logger.Err(err).
			Str("func", "chatRepository.GetChatCursor").
			Str("dispute_id", disputeID).
			Str("party", string(party)).
			Msg("failed to query chat cursor")
		return 0, false, fmt.Errorf("failed to query chat cursor: %w", err)
	}
	return lastSeen, true, nil
}

// SetChatCursor upserts the cursor, refusing to move it backwards. The
// returned affected-row count is 0 when the stored cursor was already at or
// past lastSeen; callers log that as a stale write.
func (c *chatRepository) SetChatCursor(ctx context.Context, disputeID string, party models.ChatParty, lastSeen int64) (int64, error) {
	res, err := c.ExecContext(ctx, setChatCursor, disputeID, string(party), lastSeen)
	if err != nil {
		c.logger.Err(err).
			Str("func", "chatRepository.SetChatCursor").
			Str("dispute_id", disputeID).
			Str("party", string(party)).
			Msg("failed to upsert chat cursor")
		return 0, fmt.Errorf("failed to set chat cursor: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

func (c *chatRepository) GetSharedKey(ctx context.Context, disputeID string, party models.ChatParty) (string, bool, error) {
	var secretHex string
	err := c.QueryRowContext(ctx, getSharedKey, disputeID, string(party)).Scan(&secretHex)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		c.logger.Err(err).
			Str("func", "chatRepository.GetSharedKey").
			Str("dispute_id", disputeID).
			Str("party", string(party)).
			Msg("failed to query shared key")
		return "", false, fmt.Errorf("failed to query shared key: %w", err)
	}
	return secretHex, true, nil
}

func (c *chatRepository) SetSharedKey(ctx context.Context, disputeID string, party models.ChatParty, secretHex string) error {
	_, err := c.ExecContext(ctx, setSharedKey, disputeID, string(party), secretHex)
	if err != nil {
		c.logger.Err(err).
			Str("func", "chatRepository.SetSharedKey").
			Str("dispute_id", disputeID).
			Str("party", string(party)).
			Msg("failed to upsert shared key")
		return fmt.Errorf("failed to set shared key: %w", err)
	}
	return nil
}
