// SPDX-FileCopyrightText: (C) 2025 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     HTTPConfig
		wantErr bool
	}{
		{"valid", HTTPConfig{IP: "127.0.0.1", Port: "8080", RateLimitPerSecond: 10, RateLimitBurst: 20}, false},
		{"missing ip", HTTPConfig{Port: "8080", RateLimitPerSecond: 10, RateLimitBurst: 20}, true},
		{"missing port", HTTPConfig{IP: "127.0.0.1", RateLimitPerSecond: 10, RateLimitBurst: 20}, true},
		{"zero rate", HTTPConfig{IP: "127.0.0.1", Port: "8080", RateLimitBurst: 20}, true},
		{"zero burst", HTTPConfig{IP: "127.0.0.1", Port: "8080", RateLimitPerSecond: 10}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestHTTPConfigListenAddress(t *testing.T) {
	h := HTTPConfig{IP: "0.0.0.0", Port: "9000"}
	require.Equal(t, "0.0.0.0:9000", h.ListenAddress())
}

func TestNVConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     NVConfig
		wantErr bool
	}{
		{"valid", NVConfig{PoolImagePath: "p.img", PoolBankBytes: 4096, KeyImagePath: "k.img", KeySlotCount: 4}, false},
		{"missing pool image", NVConfig{PoolBankBytes: 4096, KeyImagePath: "k.img", KeySlotCount: 4}, true},
		{"missing key image", NVConfig{PoolImagePath: "p.img", PoolBankBytes: 4096, KeySlotCount: 4}, true},
		{"zero bank bytes", NVConfig{PoolImagePath: "p.img", KeyImagePath: "k.img", KeySlotCount: 4}, true},
		{"zero slot count", NVConfig{PoolImagePath: "p.img", PoolBankBytes: 4096, KeyImagePath: "k.img"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNVConfigPoolImageSize(t *testing.T) {
	n := NVConfig{PoolBankBytes: 1000}
	require.EqualValues(t, 2002, n.poolImageSize())
}

func TestInventoryConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     InventoryConfig
		wantErr bool
	}{
		{"valid sqlite", InventoryConfig{Driver: "sqlite", DSN: "x.db"}, false},
		{"valid postgres uppercase", InventoryConfig{Driver: "Postgres", DSN: "postgres://x"}, false},
		{"missing dsn", InventoryConfig{Driver: "sqlite"}, true},
		{"unsupported driver", InventoryConfig{Driver: "mysql", DSN: "x"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCardEngineConfigValidateAggregates(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.validate())

	broken := cfg
	broken.HTTP.IP = ""
	require.Error(t, broken.validate())
}
