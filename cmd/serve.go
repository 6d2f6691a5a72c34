// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/gnuk-go/cardengine/api"
	"github.com/gnuk-go/cardengine/api/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve GET DATA / PUT DATA / GET PUBLIC KEY over HTTP for one card image",
	Long: `serve runs the APDU-over-HTTP façade used for integration testing
and fleet operations: one listener fronting a single provisioned card
image, alongside a periodic telemetry loop that records the pool's free
bytes and live-key count into the inventory.
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

		inv, err := cfg.Inventory.open()
		if err != nil {
			return err
		}
		cardRow, err := inv.UpsertCard(serialHex, cfg.NV.PoolImagePath, cfg.NV.Manufacturer)
		if err != nil {
			return err
		}

		srv := &handlers.CardServer{Card: eng, Inv: inv, CardID: cardRow.ID}
		handler := api.NewRouter(srv, cfg.HTTP.RateLimitPerSecond, cfg.HTTP.RateLimitBurst)

		return serveHTTPWithTelemetry(cmd.Context(), cfg.HTTP.ListenAddress(), handler, inv, serialHex, eng)
	},
}

// telemetrySource is the subset of *card.Card the telemetry loop reads;
// named here so the loop doesn't need the card package's full surface.
type telemetrySource interface {
	NumPrvKeys() int
	DataObjectsNumberOfBytes() int
	FreeBytes() uint32
}

// serveHTTPWithTelemetry runs the HTTP listener and a periodic pool-
// telemetry logger concurrently, joined with errgroup.Group instead of a
// bare goroutine+channel, managing two loops: HTTP and telemetry.
func serveHTTPWithTelemetry(ctx context.Context, addr string, handler http.Handler, inv interface {
	RecordScan(serial string, freeBytes uint32, numPrvKeys, dataObjectBytes int) error
}, serialHex string, eng telemetrySource) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 3 * time.Second}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-stop:
		case <-gctx.Done():
		}
		slog.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		defer func() { _ = lis.Close() }()
		slog.Info("listening", "local", lis.Addr().String())
		if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := inv.RecordScan(serialHex, eng.FreeBytes(), eng.NumPrvKeys(), eng.DataObjectsNumberOfBytes()); err != nil {
					slog.Error("recording scan telemetry failed", "err", err)
				}
			}
		}
	})

	err := g.Wait()
	cancel()
	return err
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("serial", "", "Card serial number to serve (8 hex digits)")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		panic(err)
	}
}
