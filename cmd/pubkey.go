// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gnuk-go/cardengine/internal/envelope"
)

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print a card role's public key (GET PUBLIC KEY) as a PEM block",
	Long: `pubkey retrieves the modulus stored in a role's key slot, reassembles it with the fixed RSA-2048 exponent
65537, and prints it as a PKIX PEM public key.
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
		roleS := viper.GetString("role")
		if serialHex == "" {
			return fmt.Errorf("--serial is required (8 hex digits)")
		}
		var role envelope.Role
		switch roleS {
		case "sig":
			role = envelope.RoleSigning
		case "dec":
			role = envelope.RoleDecryption
		case "aut":
			role = envelope.RoleAuthentication
		default:
			return fmt.Errorf("--role must be sig, dec, or aut")
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

		_, sw := eng.GetPublicKey(role) // validates the role holds a key
		if sw != 0x9000 {
			return fmt.Errorf("card reports status %#04x for role %s", uint16(sw), roleS)
		}
		rec, ok := eng.PrivateKeyRecord(role)
		if !ok {
			return fmt.Errorf("no private key record for role %s", roleS)
		}
		modulus, err := eng.Arena.ReadModulus(rec.KeySlot)
		if err != nil {
			return err
		}

		pub := &rsa.PublicKey{N: new(big.Int).SetBytes(modulus[:]), E: 65537}
		der, err := x509.MarshalPKIXPublicKey(pub)
		if err != nil {
			return err
		}
		return pem.Encode(os.Stdout, &pem.Block{Type: "PUBLIC KEY", Bytes: der})
	},
}

func init() {
	rootCmd.AddCommand(pubkeyCmd)
	pubkeyCmd.Flags().String("serial", "", "Card serial number (8 hex digits)")
	pubkeyCmd.Flags().String("role", "", "Key role: sig, dec, or aut")
	if err := viper.BindPFlags(pubkeyCmd.Flags()); err != nil {
		panic(err)
	}
}
