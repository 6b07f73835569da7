package tui

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MostroP2P/mostrix/models"
)

type stubKeySource struct {
	secret    []byte
	err       error
	lastParty models.ChatParty
}

func (s *stubKeySource) AttachmentSecret(_ context.Context, _ string, party models.ChatParty) ([]byte, error) {
	s.lastParty = party
	return s.secret, s.err
}

func TestAttachmentKey_PrefersEmbeddedKey(t *testing.T) {
	att := &models.ChatAttachment{DecryptionKey: "00112233"}

	key, err := attachmentKey(context.Background(), &stubKeySource{err: errors.New("must not be called")}, "d-1", models.PartyBuyer, att)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x11, 0x22, 0x33}, key)
}

func TestAttachmentKey_DerivesWhenNoneEmbedded(t *testing.T) {
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}
	src := &stubKeySource{secret: secret}

	key, err := attachmentKey(context.Background(), src, "d-1", models.PartySeller, &models.ChatAttachment{})
	require.NoError(t, err)
	assert.Equal(t, secret, key)
	assert.Equal(t, models.PartySeller, src.lastParty)
}

func TestAttachmentKey_DerivationFailure(t *testing.T) {
	src := &stubKeySource{err: errors.New("party pubkey unknown")}

	_, err := attachmentKey(context.Background(), src, "d-1", models.PartyBuyer, &models.ChatAttachment{})
	assert.Error(t, err)
}

func TestSenderParty(t *testing.T) {
	assert.Equal(t, models.PartyBuyer, senderParty(models.SenderBuyer, models.PartySeller))
	assert.Equal(t, models.PartySeller, senderParty(models.SenderSeller, models.PartyBuyer))
	// the arbitrator's own uploads belong to the channel they were sent on
	assert.Equal(t, models.PartySeller, senderParty(models.SenderAdmin, models.PartySeller))
}

func TestLatestAttachment(t *testing.T) {
	transcript := []models.ChatMessage{
		{Content: "text only"},
		{Sender: models.SenderBuyer, Attachment: &models.ChatAttachment{Filename: "old.png"}},
		{Sender: models.SenderSeller, Attachment: &models.ChatAttachment{Filename: "new.png"}},
		{Content: "closing remark"},
	}

	line := latestAttachment(transcript)
	require.NotNil(t, line)
	assert.Equal(t, "new.png", line.Attachment.Filename)
	assert.Equal(t, models.SenderSeller, line.Sender)

	assert.Nil(t, latestAttachment(nil))
}
