package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func resetViperState(t *testing.T) {
	t.Helper()
	viper.Reset()
	require.NoError(t, viper.BindPFlags(rootCmd.PersistentFlags()))
	require.NoError(t, viper.BindPFlags(serveCmd.Flags()))
	debug = false
}

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "cardengine.yaml")
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o600))
	return p
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	resetViperState(t)

	var cfg CardEngineConfig
	require.NoError(t, loadConfig(&cfg))
	require.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	resetViperState(t)

	path := writeTestConfig(t, `
http:
  ip: 0.0.0.0
  port: "9090"
  rate_limit_per_second: 5
  rate_limit_burst: 10
nv:
  pool_image: /tmp/pool.img
  pool_bank_bytes: 2048
  key_image: /tmp/keys.img
  key_slot_count: 3
inventory:
  driver: sqlite
  dsn: /tmp/cardengine-test.db
`)
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	var cfg CardEngineConfig
	require.NoError(t, loadConfig(&cfg))

	require.Equal(t, "0.0.0.0:9090", cfg.HTTP.ListenAddress())
	require.EqualValues(t, 2048, cfg.NV.PoolBankBytes)
	require.Equal(t, "/tmp/cardengine-test.db", cfg.Inventory.DSN)
}

func TestLoadConfig_RejectsInvalidHTTPConfig(t *testing.T) {
	resetViperState(t)

	path := writeTestConfig(t, `
http:
  ip: ""
  port: "9090"
`)
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	var cfg CardEngineConfig
	require.Error(t, loadConfig(&cfg))
}

func TestServeCmd_RequiresSerialFlag(t *testing.T) {
	resetViperState(t)
	require.Error(t, serveCmd.RunE(serveCmd, nil))
}
