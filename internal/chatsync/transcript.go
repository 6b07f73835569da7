package chatsync

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MostroP2P/mostrix/models"
)

// transcriptStore reads and appends the per-dispute chat log files. One
// file per dispute, one line per message: <ts>|<role>|<text>. Attachments
// are recorded as a placeholder line, never raw bytes.
type transcriptStore struct {
	dir string
}

func newTranscriptStore(dir string) *transcriptStore {
	return &transcriptStore{dir: dir}
}

func (t *transcriptStore) path(disputeID string) string {
	return filepath.Join(t.dir, sanitizeFilename(disputeID)+".txt")
}

// appendLines writes the batch to the dispute's log in one open/close so a
// crash between batches never splits one.
func (t *transcriptStore) appendLines(disputeID string, lines []models.ChatMessage) error {
	if err := os.MkdirAll(t.dir, 0o700); err != nil {
		return fmt.Errorf("create transcripts dir: %w", err)
	}
	f, err := os.OpenFile(t.path(disputeID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err = w.WriteString(formatLine(line)); err != nil {
			return fmt.Errorf("write transcript line: %w", err)
		}
	}
	return w.Flush()
}

// replayAll parses every transcript file in the directory, keyed by
// dispute id. Unparseable lines are dropped, the rest of the file survives.
func (t *transcriptStore) replayAll() (map[string][]models.ChatMessage, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read transcripts dir: %w", err)
	}

	replayed := make(map[string][]models.ChatMessage)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".txt") {
			continue
		}
		disputeID := strings.TrimSuffix(name, ".txt")
		lines, err := t.replayFile(filepath.Join(t.dir, name))
		if err != nil {
			return nil, err
		}
		if len(lines) > 0 {
			replayed[disputeID] = lines
		}
	}
	return replayed, nil
}

func (t *transcriptStore) replayFile(path string) ([]models.ChatMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript %s: %w", path, err)
	}
	defer f.Close()

	var lines []models.ChatMessage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line, ok := parseLine(scanner.Text()); ok {
			lines = append(lines, line)
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript %s: %w", path, err)
	}
	return lines, nil
}

func formatLine(line models.ChatMessage) string {
	text := line.Content
	if line.Attachment != nil {
		text = fmt.Sprintf("[attachment] %s %s", line.Attachment.Filename, line.Attachment.BlossomURL)
	}
	text = strings.ReplaceAll(text, "\n", " ")
	return fmt.Sprintf("%d|%s|%s\n", line.Timestamp, line.Sender, text)
}

func parseLine(raw string) (models.ChatMessage, bool) {
	parts := strings.SplitN(raw, "|", 3)
	if len(parts) != 3 {
		return models.ChatMessage{}, false
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return models.ChatMessage{}, false
	}
	switch models.ChatSender(parts[1]) {
	case models.SenderAdmin, models.SenderBuyer, models.SenderSeller:
	default:
		return models.ChatMessage{}, false
	}
	return models.ChatMessage{
		Timestamp: ts,
		Sender:    models.ChatSender(parts[1]),
		Content:   parts[2],
	}, true
}

// sanitizeFilename strips path separators and other hostile characters from
// relay-supplied names before they touch the filesystem.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "unnamed"
	}
	return out
}
