// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (C) 2015-2022 The Lightning Network Developers

package multisigcheck

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename   = "msigcheckd.conf"
	defaultDataDirname      = "data"
	defaultTLSCertFilename  = "tls.cert"
	defaultTLSKeyFilename   = "tls.key"
	defaultAdminMacFilename = "admin.macaroon"
	defaultLogLevel         = "info"
	defaultRPCPort          = 10019
	defaultRPCHost          = "localhost"

	// defaultTLSCertDuration is the default validity of a self-signed
	// certificate. The value corresponds to 14 months
	// (14 months * 30 days * 24 hours).
	defaultTLSCertDuration = 14 * 30 * 24 * time.Hour
)

var (
	// DefaultAppDir is the default directory where msigcheckd tries to
	// find its configuration file and store its data.
	DefaultAppDir = btcutil.AppDataDir("msigcheckd", false)

	// DefaultConfigFile is the default full path of msigcheckd's
	// configuration file.
	DefaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)

	defaultDataDir     = filepath.Join(DefaultAppDir, defaultDataDirname)
	defaultTLSCertPath = filepath.Join(DefaultAppDir, defaultTLSCertFilename)
	defaultTLSKeyPath  = filepath.Join(DefaultAppDir, defaultTLSKeyFilename)
)

// Prometheus holds the metrics endpoint options.
type Prometheus struct {
	Listen string `long:"listen" description:"The host:port to serve prometheus metrics on, metrics are disabled if empty"`
}

// Config defines the configuration options for msigcheckd.
//
// See LoadConfig for further details regarding the configuration
// loading+parsing process.
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	AppDir     string `long:"appdir" description:"The base directory that contains msigcheckd's data, configuration file, etc."`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"The directory to store msigcheckd's data within"`

	TLSCertPath        string        `long:"tlscertpath" description:"Path to write the TLS certificate for the RPC service"`
	TLSKeyPath         string        `long:"tlskeypath" description:"Path to write the TLS private key for the RPC service"`
	TLSExtraIPs        []string      `long:"tlsextraip" description:"Adds an extra ip to the generated certificate"`
	TLSExtraDomains    []string      `long:"tlsextradomain" description:"Adds an extra domain to the generated certificate"`
	TLSAutoRefresh     bool          `long:"tlsautorefresh" description:"Re-generate TLS certificate and key if the IPs or domains are changed"`
	TLSDisableAutofill bool          `long:"tlsdisableautofill" description:"Do not include the interface IPs or the system hostname in TLS certificate, use first --tlsextradomain as Common Name instead, if set"`
	TLSCertDuration    time.Duration `long:"tlscertduration" description:"The duration for which the auto-generated TLS certificate will be valid for"`

	NoMacaroons  bool   `long:"no-macaroons" description:"Disable macaroon authentication, can only be used if the server is not listening on a public interface"`
	AdminMacPath string `long:"adminmacaroonpath" description:"Path to write the admin macaroon for the RPC service if it doesn't exist"`

	// RawRPCListeners are normalized into RPCListeners by ValidateConfig.
	RawRPCListeners []string `long:"rpclisten" description:"Add an interface/port to listen for RPC connections"`
	RPCListeners    []string `no-flag:"true"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	MainNet bool `long:"mainnet" description:"Build and check mainnet addresses, the default"`
	TestNet bool `long:"testnet" description:"Build and check testnet3 addresses"`
	RegTest bool `long:"regtest" description:"Build and check regtest addresses"`
	SigNet  bool `long:"signet" description:"Build and check signet addresses"`

	Prometheus *Prometheus `group:"prometheus" namespace:"prometheus"`

	// ActiveNetParams contains parameters of the target chain.
	ActiveNetParams *chaincfg.Params `no-flag:"true"`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		AppDir:          DefaultAppDir,
		ConfigFile:      DefaultConfigFile,
		DataDir:         defaultDataDir,
		DebugLevel:      defaultLogLevel,
		TLSCertPath:     defaultTLSCertPath,
		TLSKeyPath:      defaultTLSKeyPath,
		TLSCertDuration: defaultTLSCertDuration,
		Prometheus:      &Prometheus{},
		ActiveNetParams: &chaincfg.MainNetParams,
	}
}

// LoadConfig initializes and parses the config using a config file and the
// given command line arguments.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig(args []string) (*Config, error) {
	// Pre-parse the command line options to pick up an alternative config
	// file.
	preCfg := DefaultConfig()
	if _, err := flags.NewParser(&preCfg, flags.Default).ParseArgs(
		args,
	); err != nil {
		return nil, err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", Version, "commit="+Commit)
		os.Exit(0)
	}

	// If the config file path has not been modified by the user, then
	// we'll use the default config file path. However, if the user has
	// modified their appdir, then we should assume they intend to use the
	// config file within it.
	configFileDir := CleanAndExpandPath(preCfg.AppDir)
	configFilePath := CleanAndExpandPath(preCfg.ConfigFile)
	switch {
	// User specified --appdir but no --configfile. Update the config file
	// path to the app directory, but don't require it to exist.
	case configFileDir != DefaultAppDir &&
		configFilePath == DefaultConfigFile:

		configFilePath = filepath.Join(
			configFileDir, defaultConfigFilename,
		)

	// User did specify an explicit --configfile, so we check that it does
	// exist under that path to avoid surprises.
	case configFilePath != DefaultConfigFile:
		if !fileExists(configFilePath) {
			return nil, fmt.Errorf("specified config file does "+
				"not exist in %s", configFilePath)
		}
	}

	// Next, load any additional configuration options from the file.
	var configFileError error
	cfg := preCfg
	fileParser := flags.NewParser(&cfg, flags.Default)
	err := flags.NewIniParser(fileParser).ParseFile(configFilePath)
	if err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		if _, ok := err.(*flags.IniError); ok {
			return nil, err
		}

		configFileError = err
	}

	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	flagParser := flags.NewParser(&cfg, flags.Default)
	if _, err := flagParser.ParseArgs(args); err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	cleanCfg, err := ValidateConfig(cfg)
	if usageErr, ok := err.(*usageError); ok {
		// The logging system might not yet be initialized, so we also
		// write to stderr to make sure the error appears somewhere.
		_, _ = fmt.Fprintln(os.Stderr, usageMessage)
		chckLog.Warnf("Incorrect usage: %v", usageMessage)
		chckLog.Warnf("Error validating config: %v", usageErr.err)

		return nil, usageErr.err
	}
	if err != nil {
		chckLog.Warnf("Error validating config: %v", err)

		return nil, err
	}

	// Warn about missing config file only after all other configuration is
	// done. This prevents the warning on help messages and invalid options.
	// Note this should go directly before the return.
	if configFileError != nil {
		chckLog.Warnf("%v", configFileError)
	}

	return cleanCfg, nil
}

// usageError is an error type that signals a problem with the supplied flags.
type usageError struct {
	err error
}

// Error returns the error string.
//
// NOTE: This is part of the error interface.
func (u *usageError) Error() string {
	return u.err.Error()
}

// ValidateConfig check the given configuration to be sane. This makes sure no
// illegal values or combination of values are set. All file system paths are
// normalized. The cleaned up config is returned on success.
func ValidateConfig(cfg Config) (*Config, error) {
	// If the provided app directory is not the default, we'll modify the
	// path to all of the files and directories that will live within it.
	appDir := CleanAndExpandPath(cfg.AppDir)
	if appDir != DefaultAppDir {
		cfg.DataDir = filepath.Join(appDir, defaultDataDirname)
		cfg.TLSCertPath = filepath.Join(appDir, defaultTLSCertFilename)
		cfg.TLSKeyPath = filepath.Join(appDir, defaultTLSKeyFilename)
	}

	funcName := "ValidateConfig"
	mkErr := func(format string, args ...interface{}) error {
		return fmt.Errorf(funcName+": "+format, args...)
	}
	makeDirectory := func(dir string) error {
		err := os.MkdirAll(dir, 0700)
		if err != nil {
			// Show a nicer error message if it's because a symlink
			// is linked to a directory that does not exist
			// (probably because it's not mounted).
			if e, ok := err.(*os.PathError); ok && os.IsExist(err) {
				link, lerr := os.Readlink(e.Path)
				if lerr == nil {
					str := "is symlink %s -> %s mounted?"
					err = fmt.Errorf(str, e.Path, link)
				}
			}

			str := "Failed to create msigcheckd directory '%s': %v"
			return mkErr(str, dir, err)
		}

		return nil
	}

	// As soon as we're done parsing configuration options, ensure all paths
	// to directories and files are cleaned and expanded before attempting
	// to use them later on.
	cfg.DataDir = CleanAndExpandPath(cfg.DataDir)
	cfg.TLSCertPath = CleanAndExpandPath(cfg.TLSCertPath)
	cfg.TLSKeyPath = CleanAndExpandPath(cfg.TLSKeyPath)
	cfg.AdminMacPath = CleanAndExpandPath(cfg.AdminMacPath)

	// Multiple networks can't be selected simultaneously. Count number of
	// network flags passed; assign active network params while we're at
	// it.
	numNets := 0
	cfg.ActiveNetParams = &chaincfg.MainNetParams
	if cfg.MainNet {
		numNets++
	}
	if cfg.TestNet {
		numNets++
		cfg.ActiveNetParams = &chaincfg.TestNet3Params
	}
	if cfg.RegTest {
		numNets++
		cfg.ActiveNetParams = &chaincfg.RegressionNetParams
	}
	if cfg.SigNet {
		numNets++
		cfg.ActiveNetParams = &chaincfg.SigNetParams
	}
	if numNets > 1 {
		str := "The mainnet, testnet, regtest, and signet params " +
			"can't be used together -- choose one of the four"
		return nil, &usageError{mkErr(str)}
	}

	// Nothing but the address encoding depends on the network, so we
	// default to mainnet instead of insisting on a choice.
	if numNets == 0 {
		cfg.MainNet = true
	}

	// If a custom macaroon path wasn't specified, the admin macaroon lives
	// in the network directory.
	networkDir := filepath.Join(cfg.DataDir, cfg.ActiveNetParams.Name)
	if cfg.AdminMacPath == "" {
		cfg.AdminMacPath = filepath.Join(
			networkDir, defaultAdminMacFilename,
		)
	}

	// Create the app directory and all other sub-directories if they don't
	// already exist. This makes sure that directory trees are also created
	// for files that point to outside the appdir.
	dirs := []string{
		appDir, cfg.DataDir, networkDir,
		filepath.Dir(cfg.TLSCertPath), filepath.Dir(cfg.TLSKeyPath),
		filepath.Dir(cfg.AdminMacPath),
	}
	for _, dir := range dirs {
		if err := makeDirectory(dir); err != nil {
			return nil, err
		}
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", SupportedSubsystems())
		os.Exit(0)
	}

	// Parse, validate, and set debug log level(s).
	if err := ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		str := "error parsing debug level: %v"
		return nil, &usageError{mkErr(str, err)}
	}

	// At least one RPCListener is required. So listen on localhost per
	// default.
	if len(cfg.RawRPCListeners) == 0 {
		addr := fmt.Sprintf("%s:%d", defaultRPCHost, defaultRPCPort)
		cfg.RawRPCListeners = append(cfg.RawRPCListeners, addr)
	}

	// Add default port to all RPC listener addresses if needed and remove
	// duplicate addresses.
	cfg.RPCListeners = normalizeAddresses(
		cfg.RawRPCListeners, strconv.Itoa(defaultRPCPort),
	)

	// Macaroons can only be turned off if nobody but us can reach the RPC
	// server.
	if cfg.NoMacaroons {
		for _, addr := range cfg.RPCListeners {
			if !isLoopback(addr) {
				return nil, mkErr("macaroons can only be "+
					"disabled when listening on localhost, "+
					"not on %s", addr)
			}
		}
	}

	// All good, return the sanitized result.
	return &cfg, nil
}

// normalizeAddresses adds the default port to addresses that lack one and
// drops duplicates.
func normalizeAddresses(addrs []string, defaultPort string) []string {
	result := make([]string, 0, len(addrs))
	seen := make(map[string]struct{})
	for _, addr := range addrs {
		addr = strings.TrimSpace(addr)
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, defaultPort)
		}

		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}

	return result
}

// isLoopback returns true if the host:port address only listens on a local
// interface.
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}

	if host == "localhost" {
		return true
	}

	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// fileExists reports whether the named file or directory exists.
// This function is taken from https://github.com/btcsuite/btcd
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
