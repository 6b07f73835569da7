package chatsync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MostroP2P/mostrix/models"
)

func TestTranscript_AppendAndReplay(t *testing.T) {
	files := newTranscriptStore(t.TempDir())

	batch := []models.ChatMessage{
		{Sender: models.SenderBuyer, Content: "I sent the fiat", Timestamp: 100},
		{Sender: models.SenderAdmin, Content: "checking\nwith the seller", Timestamp: 110},
		{Sender: models.SenderSeller, Content: "nothing arrived", Timestamp: 120},
	}
	require.NoError(t, files.appendLines("d-1", batch))

	replayed, err := files.replayAll()
	require.NoError(t, err)
	require.Len(t, replayed["d-1"], 3)

	lines := replayed["d-1"]
	assert.Equal(t, models.SenderBuyer, lines[0].Sender)
	assert.EqualValues(t, 100, lines[0].Timestamp)
	// newlines are flattened on write
	assert.Equal(t, "checking with the seller", lines[1].Content)
	assert.Equal(t, "nothing arrived", lines[2].Content)
}

func TestTranscript_AttachmentPlaceholder(t *testing.T) {
	files := newTranscriptStore(t.TempDir())

	batch := []models.ChatMessage{{
		Sender:    models.SenderBuyer,
		Content:   `{"blossom_url":"blossom://media.example/abc","filename":"receipt.png"}`,
		Timestamp: 100,
		Attachment: &models.ChatAttachment{
			BlossomURL: "blossom://media.example/abc",
			Filename:   "receipt.png",
		},
	}}
	require.NoError(t, files.appendLines("d-1", batch))

	raw, err := os.ReadFile(files.path("d-1"))
	require.NoError(t, err)
	// the log holds a placeholder, not the blob reference payload
	assert.Contains(t, string(raw), "[attachment] receipt.png blossom://media.example/abc")
	assert.NotContains(t, string(raw), "blossom_url")
}

func TestTranscript_SkipsGarbageLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d-1.txt")
	content := "100|buyer|fine line\nnot a line\nNaN|admin|bad ts\n200|intruder|bad role\n300|seller|also fine\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	replayed, err := newTranscriptStore(dir).replayAll()
	require.NoError(t, err)
	require.Len(t, replayed["d-1"], 2)
	assert.EqualValues(t, 300, replayed["d-1"][1].Timestamp)
}

func TestTranscript_MissingDirIsEmpty(t *testing.T) {
	files := newTranscriptStore(filepath.Join(t.TempDir(), "nope"))
	replayed, err := files.replayAll()
	require.NoError(t, err)
	assert.Empty(t, replayed)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "d-1", sanitizeFilename("d-1"))
	assert.Equal(t, "_etc_passwd", sanitizeFilename("../etc/passwd"))
	assert.Equal(t, "unnamed", sanitizeFilename("..."))
}
