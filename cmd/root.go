// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"
)

var (
	debug    bool
	logLevel slog.LevelVar
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "cardengine",
	Short: "OpenPGP smart-card Data Object engine",
	Long: `cardengine operates the card-side Data Object engine of an OpenPGP
smart card: it provisions NV images, serves GET DATA / PUT DATA / GET
PUBLIC KEY over HTTP for integration testing, and inspects a card image's
live state for fleet operators.
`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main() and only needs to run once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().Bool("debug", false, "Print debug-level logs")
	rootCmd.PersistentFlags().String("config", "", "Path to a cardengine config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	cobra.OnInitialize(func() {
		if path := viper.GetString("config"); path != "" {
			viper.SetConfigFile(path)
			if err := viper.ReadInConfig(); err != nil {
				slog.Warn("could not read config file", "path", path, "err", err)
			}
		}
	})
}

// loadDebugFlag flips the global log level once viper has bound the
// persistent flags; every subcommand's PreRunE calls this first.
func loadDebugFlag() {
	debug = viper.GetBool("debug")
	if debug {
		logLevel.Set(slog.LevelDebug)
	}
}
