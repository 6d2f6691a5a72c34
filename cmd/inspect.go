// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gnuk-go/cardengine/internal/nvram"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Scan a card image and print its live DO/counter/key state",
	Long: `inspect runs C6's scan over a card's pool and key-slot images and
reports the operator-facing telemetry a fleet operator needs: free bytes,
free key slots, live private-key count, and PIN lockout state.
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
		if serialHex == "" {
			return fmt.Errorf("--serial is required (8 hex digits)")
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

		freeSlots, err := eng.FreeKeySlots()
		if err != nil {
			return err
		}

		cmd.Printf("card %s\n", serialHex)
		cmd.Printf("  pool free bytes:      %d\n", eng.FreeBytes())
		cmd.Printf("  data object bytes:    %d\n", eng.DataObjectsNumberOfBytes())
		cmd.Printf("  private keys present: %d/3\n", eng.NumPrvKeys())
		cmd.Printf("  free key slots:       %d\n", freeSlots)
		cmd.Printf("  PW1 locked: %t   RC locked: %t   PW3 locked: %t\n",
			eng.PasswdLocked(nvram.PWErrPW1), eng.PasswdLocked(nvram.PWErrRC), eng.PasswdLocked(nvram.PWErrPW3))

		if inv, err := cfg.Inventory.open(); err == nil {
			if _, err := inv.UpsertCard(serialHex, cfg.NV.PoolImagePath, cfg.NV.Manufacturer); err != nil {
				return err
			}
			if err := inv.RecordScan(serialHex, eng.FreeBytes(), eng.NumPrvKeys(), eng.DataObjectsNumberOfBytes()); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("serial", "", "Card serial number to inspect (8 hex digits)")
	if err := viper.BindPFlags(inspectCmd.Flags()); err != nil {
		panic(err)
	}
}
