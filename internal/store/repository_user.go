package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MostroP2P/mostrix/internal/logger"
)

type userRepository struct {
	*DB
	logger *logger.Logger
}

func NewUserRepository(db *DB, logger *logger.Logger) UserRepository {
	return &userRepository{DB: db, logger: logger}
}

func (u *userRepository) CreateUser(ctx context.Context, mnemonic string) error {
	_, err := u.ExecContext(ctx, createUser, mnemonic, time.Now().Unix())
	if err != nil {
		u.logger.Err(err).Str("func", "userRepository.CreateUser").Msg("failed to insert user row")
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (u *userRepository) GetMnemonic(ctx context.Context) (string, error) {
	var mnemonic string
	err := u.QueryRowContext(ctx, getMnemonic).Scan(&mnemonic)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoUser
	}
	if err != nil {
		u.logger.Err(err).Str("func", "userRepository.GetMnemonic").Msg("failed to query mnemonic")
		return "", fmt.Errorf("failed to query mnemonic: %w", err)
	}
	return mnemonic, nil
}

func (u *userRepository) GetTradeIndex(ctx context.Context) (int64, error) {
	var index int64
	err := u.QueryRowContext(ctx, getTradeIndex).Scan(&index)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoUser
	}
	if err != nil {
		u.logger.Err(err).Str("func", "userRepository.GetTradeIndex").Msg("failed to query trade index")
		return 0, fmt.Errorf("failed to query trade index: %w", err)
	}
	return index, nil
}

// NextTradeIndex allocates the next trade key index. The read and the write
// share one transaction so concurrent allocations cannot hand out the same
// index twice.
func (u *userRepository) NextTradeIndex(ctx context.Context) (int64, error) {
	tx, err := u.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin trade index tx: %w", err)
	}
	defer tx.Rollback()

	var current int64
	if err = tx.QueryRowContext(ctx, getTradeIndex).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNoUser
		}
		u.logger.Err(err).Str("func", "userRepository.NextTradeIndex").Msg("failed to read trade index")
		return 0, fmt.Errorf("failed to read trade index: %w", err)
	}

	next := current + 1
	if _, err = tx.ExecContext(ctx, setTradeIndex, next); err != nil {
		u.logger.Err(err).Str("func", "userRepository.NextTradeIndex").Msg("failed to advance trade index")
		return 0, fmt.Errorf("failed to advance trade index: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit trade index: %w", err)
	}
	return next, nil
}
