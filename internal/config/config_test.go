package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "string form", input: `"15s"`, want: 15 * time.Second},
		{name: "number form", input: `5000000000`, want: 5 * time.Second},
		{name: "garbage", input: `"soon"`, wantErr: true},
		{name: "bool", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Std())
		})
	}
}

func TestParseJSONFile_MissingIsNil(t *testing.T) {
	cfg, err := parseJSONFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestParseJSONFile_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	payload := `{
		"relays": ["wss://relay.example.com"],
		"coordinator_pubkey": "aa11",
		"chat_poll_interval": "2s",
		"pow": 3
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	fileCfg, err := parseJSONFile(path)
	require.NoError(t, err)
	require.NotNil(t, fileCfg)

	cfg := defaults()
	require.NoError(t, merge(&cfg, fileCfg))

	assert.Equal(t, []string{"wss://relay.example.com"}, cfg.Relays)
	assert.Equal(t, "aa11", cfg.CoordinatorPubkey)
	assert.Equal(t, 2*time.Second, cfg.ChatPollInterval)
	assert.Equal(t, uint8(3), cfg.PoW)
	// untouched defaults survive the merge
	assert.Equal(t, 10*time.Second, cfg.OrderPollInterval)
}

func TestParseEnv_Overrides(t *testing.T) {
	t.Setenv("MOSTRIX_COORDINATOR_PUBKEY", "bb22")
	t.Setenv("MOSTRIX_RELAYS", "wss://a.example,wss://b.example")
	t.Setenv("MOSTRIX_CHAT_POLL_INTERVAL", "7s")

	cfg := defaults()
	require.NoError(t, parseEnv(&cfg))

	assert.Equal(t, "bb22", cfg.CoordinatorPubkey)
	assert.Equal(t, []string{"wss://a.example", "wss://b.example"}, cfg.Relays)
	assert.Equal(t, 7*time.Second, cfg.ChatPollInterval)
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	cfg.CoordinatorPubkey = "cc33"
	assert.NoError(t, cfg.validate())

	noCoordinator := defaults()
	assert.ErrorIs(t, noCoordinator.validate(), ErrNoCoordinator)

	noRelays := defaults()
	noRelays.CoordinatorPubkey = "cc33"
	noRelays.Relays = nil
	assert.Error(t, noRelays.validate())
}
