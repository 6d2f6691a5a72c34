// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gnuk-go/cardengine/internal/keystring"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Lay down a fresh NV image and an initial admin PIN",
	Long: `provision creates a card's pool and key-slot images if they are
absent (an existing image is opened as it is, not erased), then installs
the factory admin PIN keystring so Key Import can
run immediately afterward. It also registers the card in the inventory.
`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		loadDebugFlag()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg CardEngineConfig
		if err := loadConfig(&cfg); err != nil {
			return err
		}

		serialHex := viper.GetString("serial")
		pw3 := viper.GetString("pw3")
		if serialHex == "" {
			return fmt.Errorf("--serial is required (8 hex digits)")
		}
		if pw3 == "" {
			return fmt.Errorf("--pw3 is required (the factory admin PIN)")
		}

		serialBytes, err := hex.DecodeString(serialHex)
		if err != nil || len(serialBytes) != 4 {
			return fmt.Errorf("--serial must be exactly 8 hex digits")
		}
		var serial [4]byte
		copy(serial[:], serialBytes)

		eng, err := openEngine(cfg.NV, serial)
		if err != nil {
			return err
		}

		adminKS := keystring.Derive(eng.Envelope.Hasher, []byte(pw3))
		if err := eng.KS.Store(keystring.RolePW3, adminKS); err != nil {
			return fmt.Errorf("installing admin keystring: %w", err)
		}

		inv, err := cfg.Inventory.open()
		if err != nil {
			return err
		}
		if _, err := inv.UpsertCard(serialHex, cfg.NV.PoolImagePath, cfg.NV.Manufacturer); err != nil {
			return err
		}

		cmd.Printf("provisioned card %s (pool=%s keys=%s)\n", serialHex, cfg.NV.PoolImagePath, cfg.NV.KeyImagePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(provisionCmd)
	provisionCmd.Flags().String("serial", "", "Card serial number (8 hex digits)")
	provisionCmd.Flags().String("pw3", "", "Factory admin PIN to install")
	if err := viper.BindPFlags(provisionCmd.Flags()); err != nil {
		panic(err)
	}
}
