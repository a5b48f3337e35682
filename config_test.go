package multisigcheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.AppDir = t.TempDir()

	return cfg
}

func TestValidateConfigNetworks(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		params *chaincfg.Params
	}{{
		name:   "default",
		modify: func(*Config) {},
		params: &chaincfg.MainNetParams,
	}, {
		name:   "testnet",
		modify: func(cfg *Config) { cfg.TestNet = true },
		params: &chaincfg.TestNet3Params,
	}, {
		name:   "regtest",
		modify: func(cfg *Config) { cfg.RegTest = true },
		params: &chaincfg.RegressionNetParams,
	}, {
		name:   "signet",
		modify: func(cfg *Config) { cfg.SigNet = true },
		params: &chaincfg.SigNetParams,
	}}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.modify(&cfg)

			cleanCfg, err := ValidateConfig(cfg)
			require.NoError(t, err)
			require.Equal(t, tc.params, cleanCfg.ActiveNetParams)

			require.Equal(t, filepath.Join(
				cfg.AppDir, defaultDataDirname, tc.params.Name,
				defaultAdminMacFilename,
			), cleanCfg.AdminMacPath)
			require.DirExists(t, filepath.Dir(cleanCfg.AdminMacPath))
			require.Equal(t, filepath.Join(
				cfg.AppDir, defaultTLSCertFilename,
			), cleanCfg.TLSCertPath)

			require.Equal(t, []string{"localhost:10019"},
				cleanCfg.RPCListeners)
		})
	}
}

func TestValidateConfigMultipleNetworks(t *testing.T) {
	cfg := testConfig(t)
	cfg.TestNet = true
	cfg.RegTest = true

	_, err := ValidateConfig(cfg)
	require.Error(t, err)
	require.IsType(t, &usageError{}, err)
}

func TestValidateConfigNoMacaroons(t *testing.T) {
	cfg := testConfig(t)
	cfg.NoMacaroons = true
	cfg.RawRPCListeners = []string{"127.0.0.1", "[::1]:10020"}

	cleanCfg, err := ValidateConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, []string{"127.0.0.1:10019", "[::1]:10020"},
		cleanCfg.RPCListeners)

	cfg.RawRPCListeners = []string{"localhost", "0.0.0.0:10019"}
	_, err = ValidateConfig(cfg)
	require.ErrorContains(t, err, "0.0.0.0:10019")
}

func TestValidateConfigCustomMacaroonPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdminMacPath = filepath.Join(cfg.AppDir, "macs", "admin.mac")

	cleanCfg, err := ValidateConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, cfg.AdminMacPath, cleanCfg.AdminMacPath)
	require.DirExists(t, filepath.Join(cfg.AppDir, "macs"))
}

func TestNormalizeAddresses(t *testing.T) {
	addrs := normalizeAddresses([]string{
		"localhost", " localhost:10019 ", "10.0.0.1:8080", "::1",
		"10.0.0.1:8080",
	}, "10019")

	require.Equal(t, []string{
		"localhost:10019", "10.0.0.1:8080", "[::1]:10019",
	}, addrs)
}

func TestIsLoopback(t *testing.T) {
	testCases := []struct {
		addr     string
		loopback bool
	}{
		{"localhost:10019", true},
		{"127.0.0.1:10019", true},
		{"127.1.2.3:1", true},
		{"[::1]:10019", true},
		{"0.0.0.0:10019", false},
		{"192.168.1.10:10019", false},
		{"example.com:10019", false},
		{"localhost", false},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.loopback, isLoopback(tc.addr), tc.addr)
	}
}

func TestLoadConfigFile(t *testing.T) {
	appDir := t.TempDir()
	configFile := filepath.Join(appDir, defaultConfigFilename)
	err := os.WriteFile(configFile, []byte(
		"testnet=true\nrpclisten=127.0.0.1:10030\n"+
			"[prometheus]\nprometheus.listen=127.0.0.1:9090\n",
	), 0600)
	require.NoError(t, err)

	cfg, err := LoadConfig([]string{"--appdir=" + appDir})
	require.NoError(t, err)
	require.Equal(t, &chaincfg.TestNet3Params, cfg.ActiveNetParams)
	require.Equal(t, []string{"127.0.0.1:10030"}, cfg.RPCListeners)
	require.Equal(t, "127.0.0.1:9090", cfg.Prometheus.Listen)

	// Command line options take precedence over the file.
	cfg, err = LoadConfig([]string{
		"--appdir=" + appDir, "--prometheus.listen=127.0.0.1:9191",
	})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9191", cfg.Prometheus.Listen)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig([]string{
		"--configfile=" + filepath.Join(t.TempDir(), "nope.conf"),
	})
	require.ErrorContains(t, err, "does not exist")
}

func TestCleanAndExpandPath(t *testing.T) {
	require.Equal(t, "", CleanAndExpandPath(""))

	t.Setenv("MSIGCHECK_TEST_DIR", "/tmp/msig")
	require.Equal(t, "/tmp/msig/data",
		CleanAndExpandPath("$MSIGCHECK_TEST_DIR/./data/"))
}
