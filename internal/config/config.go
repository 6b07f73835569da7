// Package config assembles the mostrix client configuration from three
// layers: built-in defaults, an optional JSON file in the data directory,
// and MOSTRIX_* environment variables. Later layers override earlier ones.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the top-level client configuration.
//
// Struct tags:
//   - env  — environment variable name (caarlos0/env).
//   - json — key in the optional config.json file.
type Config struct {
	// Relays are the websocket URLs of the relays events are published to
	// and fetched from.
	// Env: MOSTRIX_RELAYS (comma separated)
	Relays []string `env:"RELAYS" envSeparator:"," json:"relays"`

	// CoordinatorPubkey is the hex public key of the coordinator daemon all
	// order and dispute messages are addressed to.
	// Env: MOSTRIX_COORDINATOR_PUBKEY
	CoordinatorPubkey string `env:"COORDINATOR_PUBKEY" json:"coordinator_pubkey"`

	// AdminPrivkey is the arbitrator's identity secret key in hex. Empty for
	// regular (non-arbitrator) users; admin operations require it.
	// Env: MOSTRIX_ADMIN_PRIVKEY
	AdminPrivkey string `env:"ADMIN_PRIVKEY" json:"admin_privkey"`

	// DataDir is where the sqlite database, transcripts, downloads and the
	// log file live. Defaults to ~/.mostrix.
	// Env: MOSTRIX_DATA_DIR
	DataDir string `env:"DATA_DIR" json:"data_dir"`

	// LogLevel is the zerolog level name (debug, info, warn, error).
	// Env: MOSTRIX_LOG_LEVEL
	LogLevel string `env:"LOG_LEVEL" json:"log_level"`

	// PoW is the proof-of-work difficulty applied to outgoing wrap events.
	// Env: MOSTRIX_POW
	PoW uint8 `env:"POW" json:"pow"`

	// FullPrivacy switches outgoing messages to the unlinkable envelope
	// variant: no reputation-bearing signature ties them to the identity key.
	// Env: MOSTRIX_FULL_PRIVACY
	FullPrivacy bool `env:"FULL_PRIVACY" json:"full_privacy"`

	// Currencies restricts the order book view to the given fiat codes.
	// Env: MOSTRIX_CURRENCIES (comma separated)
	Currencies []string `env:"CURRENCIES" envSeparator:"," json:"currencies"`

	// OrderPollInterval is how often the order book and dispute list are
	// refreshed.
	// Env: MOSTRIX_ORDER_POLL_INTERVAL
	OrderPollInterval time.Duration `env:"ORDER_POLL_INTERVAL" json:"order_poll_interval"`

	// ChatPollInterval is how often a dispute chat fetch cycle is triggered.
	// Overlapping triggers collapse into one in-flight fetch.
	// Env: MOSTRIX_CHAT_POLL_INTERVAL
	ChatPollInterval time.Duration `env:"CHAT_POLL_INTERVAL" json:"chat_poll_interval"`

	// RequestTimeout bounds one request/response exchange with the
	// coordinator.
	// Env: MOSTRIX_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" json:"request_timeout"`
}

// ErrNoCoordinator is returned when no coordinator pubkey is configured.
var ErrNoCoordinator = errors.New("coordinator pubkey is not configured")

func defaults() Config {
	return Config{
		Relays:            []string{"wss://relay.mostro.network"},
		LogLevel:          "info",
		OrderPollInterval: 10 * time.Second,
		ChatPollInterval:  5 * time.Second,
		RequestTimeout:    15 * time.Second,
	}
}

// Load builds the effective configuration: defaults, then config.json from
// the data directory (if present), then environment overrides. It also
// ensures the data directory exists.
func Load() (*Config, error) {
	cfg := defaults()

	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir

	fileCfg, err := parseJSONFile(filepath.Join(dataDir, "config.json"))
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		if err = merge(&cfg, fileCfg); err != nil {
			return nil, err
		}
	}

	if err = parseEnv(&cfg); err != nil {
		return nil, err
	}

	if cfg.DataDir != dataDir {
		// Env/file moved the data dir; make sure it exists too.
		if err = os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	if len(c.Relays) == 0 {
		return errors.New("at least one relay is required")
	}
	if c.CoordinatorPubkey == "" {
		return ErrNoCoordinator
	}
	if c.OrderPollInterval <= 0 || c.ChatPollInterval <= 0 {
		return errors.New("poll intervals must be positive")
	}
	return nil
}

// IsAdmin reports whether an arbitrator identity key is configured.
func (c *Config) IsAdmin() bool { return c.AdminPrivkey != "" }

// DownloadsDir is where decrypted attachments are written.
func (c *Config) DownloadsDir() string { return filepath.Join(c.DataDir, "downloads") }

// TranscriptsDir is where per-dispute chat logs are written.
func (c *Config) TranscriptsDir() string { return filepath.Join(c.DataDir, "chats") }

// DBPath is the sqlite database file.
func (c *Config) DBPath() string { return filepath.Join(c.DataDir, "mostrix.db") }

func resolveDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	dir := filepath.Join(home, ".mostrix")
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return dir, nil
}
