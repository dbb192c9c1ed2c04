// Package config loads and validates the service configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"sigillo.dev/sigillo/model"
)

// Config is the full service configuration.
//
// Example:
//
//	{
//	  "data_dir": "/var/lib/sigillo/data",
//	  "state_dir": "/var/lib/sigillo/identity",
//	  "public_base_url": "https://sigillo.example",
//	  "listen_addr": ":8080",
//	  "verify_listen_addr": ":9090",
//	  "network": "algo",
//	  "custody": {
//	    "base_url": "https://custody.example",
//	    "email": "ops@example.com",
//	    "password": "...",
//	    "hsm_id": "hsm-1",
//	    "algod_id": "algod-1",
//	    "indexer_id": "indexer-1"
//	  },
//	  "funding": {
//	    "min_balance": 5000000,
//	    "topup_amount": 10000000,
//	    "max_attempts": 6,
//	    "poll_interval_ms": 2000
//	  }
//	}
type Config struct {
	DataDir          string `json:"data_dir"`
	StateDir         string `json:"state_dir,omitempty"`
	PublicBaseURL    string `json:"public_base_url"`
	ListenAddr       string `json:"listen_addr,omitempty"`
	VerifyListenAddr string `json:"verify_listen_addr,omitempty"`
	Network          string `json:"network,omitempty"`

	Custody CustodyConfig `json:"custody"`
	Funding FundingConfig `json:"funding,omitempty"`
}

// CustodyConfig points at the remote transaction service.
type CustodyConfig struct {
	BaseURL   string `json:"base_url"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	HSMID     string `json:"hsm_id,omitempty"`
	AlgodID   string `json:"algod_id,omitempty"`
	IndexerID string `json:"indexer_id,omitempty"`
}

// FundingConfig overrides the default funding policy. Zero fields keep the
// defaults.
type FundingConfig struct {
	MinBalance     uint64 `json:"min_balance,omitempty"`
	TopupAmount    uint64 `json:"topup_amount,omitempty"`
	MaxAttempts    int    `json:"max_attempts,omitempty"`
	PollIntervalMS int    `json:"poll_interval_ms,omitempty"`
}

func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("config: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.PublicBaseURL == "" {
		return errors.New("config: public_base_url is required")
	}
	if c.Custody.BaseURL == "" {
		return errors.New("config: custody.base_url is required")
	}
	if c.Custody.Email == "" || c.Custody.Password == "" {
		return errors.New("config: custody.email and custody.password are required")
	}
	switch c.Network {
	case "", "algo":
	default:
		return fmt.Errorf("config: unsupported network %q", c.Network)
	}
	if c.Funding.PollIntervalMS < 0 || c.Funding.MaxAttempts < 0 {
		return errors.New("config: funding values must not be negative")
	}
	return nil
}

// EnabledNetwork returns the configured network, defaulting to "algo".
func (c Config) EnabledNetwork() string {
	if c.Network == "" {
		return "algo"
	}
	return c.Network
}

// FundingPolicy merges the funding overrides onto the defaults.
func (c Config) FundingPolicy() model.FundingPolicy {
	p := model.DefaultFundingPolicy()
	if c.Funding.MinBalance > 0 {
		p.MinBalance = c.Funding.MinBalance
	}
	if c.Funding.TopupAmount > 0 {
		p.TopupAmount = c.Funding.TopupAmount
	}
	if c.Funding.MaxAttempts > 0 {
		p.MaxAttempts = c.Funding.MaxAttempts
	}
	if c.Funding.PollIntervalMS > 0 {
		p.PollInterval = time.Duration(c.Funding.PollIntervalMS) * time.Millisecond
	}
	return p
}
