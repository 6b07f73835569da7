// Package attachment resolves, fetches, decrypts and saves the encrypted
// blobs referenced from dispute chat messages.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/models"
)

const (
	// maxBlobSize rejects oversized blobs before they occupy memory or
	// reach the cipher.
	maxBlobSize = 25 << 20
	// nonceSize and tagSize frame the blob: nonce || ciphertext || tag.
	nonceSize = 12
	tagSize   = 16

	fetchTimeout = 30 * time.Second
)

var (
	ErrUnsupportedScheme = errors.New("unsupported blob reference scheme")
	ErrTooLarge          = errors.New("attachment exceeds size limit")
	ErrTruncatedBlob     = errors.New("blob shorter than nonce and tag")
	// ErrDecrypt covers wrong key and failed authentication alike; a blob
	// that does not authenticate yields no plaintext at all.
	ErrDecrypt = errors.New("attachment decryption failed")
)

// ResolveURL rewrites a blossom:// reference to its https address. Plain
// https passes through; anything else is rejected.
func ResolveURL(ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse blob reference: %w", err)
	}
	switch parsed.Scheme {
	case "blossom":
		parsed.Scheme = "https"
		return parsed.String(), nil
	case "https":
		return ref, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}
}

// Fetcher downloads blobs and writes decrypted files to the downloads
// directory.
type Fetcher struct {
	client       *resty.Client
	downloadsDir string
	log          *logger.Logger
}

func NewFetcher(downloadsDir string, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client:       resty.New().SetTimeout(fetchTimeout),
		downloadsDir: downloadsDir,
		log:          log,
	}
}

// Fetch downloads a resolved blob URL, enforcing the size cap both on the
// declared Content-Length and while reading the body.
func (f *Fetcher) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(blobURL)
	if err != nil {
		return nil, fmt.Errorf("fetch blob: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch blob: unexpected status %d", resp.StatusCode())
	}
	if resp.RawResponse.ContentLength > maxBlobSize {
		return nil, fmt.Errorf("%w: %d bytes declared", ErrTooLarge, resp.RawResponse.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(body, maxBlobSize+1))
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	if len(data) > maxBlobSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Decrypt opens a nonce(12) || ciphertext || tag(16) blob with the 32-byte
// symmetric key. Authentication is all-or-nothing: a tampered blob returns
// an error, never truncated plaintext.
func Decrypt(blob, key []byte) ([]byte, error) {
	if len(blob) < nonceSize+tagSize {
		return nil, ErrTruncatedBlob
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecrypt, err)
	}
	plaintext, err := aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// Save writes attachment bytes to <downloads>/<dispute_id>_<sanitized
// filename>, appending .enc when the bytes are still ciphertext, and
// returns the written path. Called only on explicit operator action.
func (f *Fetcher) Save(disputeID string, att *models.ChatAttachment, data []byte, decrypted bool) (string, error) {
	if err := os.MkdirAll(f.downloadsDir, 0o700); err != nil {
		return "", fmt.Errorf("create downloads dir: %w", err)
	}

	name := sanitizeFilename(disputeID) + "_" + sanitizeFilename(att.Filename)
	if !decrypted {
		name += ".enc"
	}
	path := filepath.Join(f.downloadsDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	f.log.Info().Str("path", path).Bool("decrypted", decrypted).Msg("attachment saved")
	return path, nil
}

// sanitizeFilename keeps relay-supplied names from escaping the downloads
// directory.
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
