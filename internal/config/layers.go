package config

import (
	"encoding/json"
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
)

// parseEnv populates cfg from environment variables using the caarlos0/env
// library. Struct fields are mapped via their `env` tags on [Config], all
// prefixed with MOSTRIX_.
func parseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "MOSTRIX_"}); err != nil {
		return fmt.Errorf("error getting env configs: %w", err)
	}
	return nil
}

// jsonFileConfig mirrors [Config] with string durations so config files can
// say "15s" instead of nanosecond integers.
type jsonFileConfig struct {
	Relays            []string `json:"relays"`
	CoordinatorPubkey string   `json:"coordinator_pubkey"`
	AdminPrivkey      string   `json:"admin_privkey"`
	DataDir           string   `json:"data_dir"`
	LogLevel          string   `json:"log_level"`
	PoW               uint8    `json:"pow"`
	FullPrivacy       bool     `json:"full_privacy"`
	Currencies        []string `json:"currencies"`
	OrderPollInterval Duration `json:"order_poll_interval"`
	ChatPollInterval  Duration `json:"chat_poll_interval"`
	RequestTimeout    Duration `json:"request_timeout"`
}

// parseJSONFile reads the optional JSON config layer. A missing file is not
// an error; a malformed one is.
func parseJSONFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer f.Close()

	var jsonCfg jsonFileConfig
	if err = json.NewDecoder(f).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	return &Config{
		Relays:            jsonCfg.Relays,
		CoordinatorPubkey: jsonCfg.CoordinatorPubkey,
		AdminPrivkey:      jsonCfg.AdminPrivkey,
		DataDir:           jsonCfg.DataDir,
		LogLevel:          jsonCfg.LogLevel,
		PoW:               jsonCfg.PoW,
		FullPrivacy:       jsonCfg.FullPrivacy,
		Currencies:        jsonCfg.Currencies,
		OrderPollInterval: jsonCfg.OrderPollInterval.Std(),
		ChatPollInterval:  jsonCfg.ChatPollInterval.Std(),
		RequestTimeout:    jsonCfg.RequestTimeout.Std(),
	}, nil
}

// merge overlays src on top of dst, overriding any non-zero field.
func merge(dst, src *Config) error {
	if err := mergo.Merge(dst, src, mergo.WithOverride); err != nil {
		return fmt.Errorf("error merging configs: %w", err)
	}
	return nil
}
