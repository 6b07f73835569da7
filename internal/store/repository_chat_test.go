package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/models"
)

func newMockChatRepo(t *testing.T) (ChatRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db := &DB{DB: conn, logger: logger.Nop()}
	return NewChatRepository(db, logger.Nop()), mock, conn
}

func TestSetChatCursor_ReportsAffectedRows(t *testing.T) {
	repo, mock, _ := newMockChatRepo(t)

	mock.ExpectExec("INSERT INTO chat_cursors").
		WithArgs("d-1", "buyer", int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.SetChatCursor(context.Background(), "d-1", models.PartyBuyer, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	// stale write: the conflict guard leaves the row untouched
	mock.ExpectExec("INSERT INTO chat_cursors").
		WithArgs("d-1", "buyer", int64(50)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err = repo.SetChatCursor(context.Background(), "d-1", models.PartyBuyer, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetChatCursor_ExecError(t *testing.T) {
	repo, mock, _ := newMockChatRepo(t)

	mock.ExpectExec("INSERT INTO chat_cursors").
		WillReturnError(errors.New("disk I/O error"))

	_, err := repo.SetChatCursor(context.Background(), "d-1", models.PartySeller, 10)
	assert.ErrorContains(t, err, "failed to set chat cursor")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSharedKey_MissingRowIsNotAnError(t *testing.T) {
	repo, mock, _ := newMockChatRepo(t)

	mock.ExpectQuery("SELECT secret_key FROM shared_keys").
		WithArgs("d-1", "buyer").
		WillReturnError(sql.ErrNoRows)

	key, found, err := repo.GetSharedKey(context.Background(), "d-1", models.PartyBuyer)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChatCursor_QueryError(t *testing.T) {
	repo, mock, _ := newMockChatRepo(t)

	mock.ExpectQuery("SELECT last_seen FROM chat_cursors").
		WillReturnError(errors.New("database is locked"))

	_, _, err := repo.GetChatCursor(context.Background(), "d-1", models.PartyBuyer)
	assert.ErrorContains(t, err, "failed to query chat cursor")
	assert.NoError(t, mock.ExpectationsWereMet())
}
