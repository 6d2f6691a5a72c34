// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/gnuk-go/cardengine/internal/inventory"
)

// LogConfig configures slog's output level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// HTTPConfig configures the GET/PUT DATA façade's listener.
type HTTPConfig struct {
	IP   string `mapstructure:"ip"`
	Port string `mapstructure:"port"`
	// RateLimitPerSecond bounds every façade request (GET and PUT alike)
	// per remote address, guarding the simulator against APDU floods.
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`
}

// ListenAddress returns the concatenated IP:Port address for listening.
func (h *HTTPConfig) ListenAddress() string {
	return h.IP + ":" + h.Port
}

func (h *HTTPConfig) validate() error {
	if h.IP == "" {
		return errors.New("the server's HTTP IP address is required")
	}
	if h.Port == "" {
		return errors.New("the server's HTTP port is required")
	}
	if h.RateLimitPerSecond <= 0 {
		return errors.New("http.rate_limit_per_second must be positive")
	}
	if h.RateLimitBurst <= 0 {
		return errors.New("http.rate_limit_burst must be positive")
	}
	return nil
}

// NVConfig describes one card's NV medium: the collaborator-level
// word-addressable storage, backed here by afero.
type NVConfig struct {
	PoolImagePath  string `mapstructure:"pool_image"`
	PoolBankBytes  uint32 `mapstructure:"pool_bank_bytes"`
	KeyImagePath   string `mapstructure:"key_image"`
	KeySlotCount   uint32 `mapstructure:"key_slot_count"`
	Manufacturer   uint16 `mapstructure:"manufacturer"`
	MaxCmdBytes    uint16 `mapstructure:"max_cmd_bytes"`
	MaxResBytes    uint16 `mapstructure:"max_res_bytes"`
}

func (n *NVConfig) validate() error {
	if n.PoolImagePath == "" {
		return errors.New("nv.pool_image is required")
	}
	if n.KeyImagePath == "" {
		return errors.New("nv.key_image is required")
	}
	if n.PoolBankBytes == 0 {
		return errors.New("nv.pool_bank_bytes must be positive")
	}
	if n.KeySlotCount == 0 {
		return errors.New("nv.key_slot_count must be positive")
	}
	return nil
}

// poolImageSize is the total size the pool's Medium must report: a
// two-byte superblock plus two erase banks of PoolBankBytes each (the
// ping-pong compaction layout internal/nvram.Pool expects).
func (n *NVConfig) poolImageSize() uint32 {
	return 2 + 2*n.PoolBankBytes
}

// InventoryConfig points at the fleet-management registry.
type InventoryConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`
}

func (ic *InventoryConfig) validate() error {
	if ic.DSN == "" {
		return errors.New("inventory.dsn is required")
	}
	ic.Driver = strings.ToLower(ic.Driver)
	if ic.Driver != "sqlite" && ic.Driver != "postgres" {
		return fmt.Errorf("unsupported inventory driver: %s (must be 'sqlite' or 'postgres')", ic.Driver)
	}
	return nil
}

func (ic *InventoryConfig) open() (*inventory.Store, error) {
	if err := ic.validate(); err != nil {
		return nil, err
	}
	return inventory.Open(ic.Driver, ic.DSN)
}

// CardEngineConfig holds the common contents of a cardengine config file.
type CardEngineConfig struct {
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	NV        NVConfig        `mapstructure:"nv"`
	Inventory InventoryConfig `mapstructure:"inventory"`
}

func (c *CardEngineConfig) validate() error {
	if err := c.HTTP.validate(); err != nil {
		return err
	}
	if err := c.NV.validate(); err != nil {
		return err
	}
	if err := c.Inventory.validate(); err != nil {
		return err
	}
	return nil
}

// defaultConfig seeds the fields a cardengine deployment can reasonably
// run with out of the box; a config file or flags override these.
func defaultConfig() CardEngineConfig {
	return CardEngineConfig{
		HTTP: HTTPConfig{
			IP:                 "127.0.0.1",
			Port:               "8080",
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
		},
		NV: NVConfig{
			PoolImagePath: "cardengine-pool.img",
			PoolBankBytes: 8192,
			KeyImagePath:  "cardengine-keys.img",
			KeySlotCount:  4,
			MaxCmdBytes:   2048,
			MaxResBytes:   2048,
		},
		Inventory: InventoryConfig{
			Driver: "sqlite",
			DSN:    "cardengine.db",
		},
	}
}

// loadConfig unmarshals viper's bound flags/config file over defaultConfig
// and validates the result.
func loadConfig(cfg *CardEngineConfig) error {
	*cfg = defaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decoding configuration: %w", err)
	}
	return cfg.validate()
}
