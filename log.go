package multisigcheck

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aakselrod/multisigcheck/address"
	"github.com/aakselrod/multisigcheck/descriptor"
	"github.com/aakselrod/multisigcheck/keyderive"
	"github.com/aakselrod/multisigcheck/msgverify"
	"github.com/btcsuite/btclog"
)

const (
	// Subsystem is the logging code of the root package.
	Subsystem = "CHCK"

	rpcSubsystem = "RPCS"
)

var (
	chckLog = btclog.Disabled
	rpcsLog = btclog.Disabled

	// subsystemLoggers maps each subsystem code to its logger, it is
	// populated by SetupLoggers.
	subsystemLoggers = make(map[string]btclog.Logger)
)

// SetupLoggers creates one logger per subsystem, all writing to w, and hands
// them to their packages.
func SetupLoggers(w io.Writer) {
	backend := btclog.NewBackend(w)

	chckLog = addSubLogger(backend, Subsystem, nil)
	rpcsLog = addSubLogger(backend, rpcSubsystem, nil)

	addSubLogger(backend, descriptor.Subsystem, descriptor.UseLogger)
	addSubLogger(backend, keyderive.Subsystem, keyderive.UseLogger)
	addSubLogger(backend, address.Subsystem, address.UseLogger)
	addSubLogger(backend, msgverify.Subsystem, msgverify.UseLogger)
}

func addSubLogger(backend *btclog.Backend, subsystem string,
	useLogger func(btclog.Logger)) btclog.Logger {

	logger := backend.Logger(subsystem)
	subsystemLoggers[subsystem] = logger
	if useLogger != nil {
		useLogger(logger)
	}

	return logger
}

// SupportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsystem := range subsystemLoggers {
		subsystems = append(subsystems, subsystem)
	}
	sort.Strings(subsystems)

	return subsystems
}

func setLogLevel(subsystem, level string) error {
	logger, ok := subsystemLoggers[subsystem]
	if !ok {
		return fmt.Errorf("invalid subsystem %q, supported subsystems "+
			"are %v", subsystem, SupportedSubsystems())
	}

	logLevel, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("invalid log level: %v", level)
	}
	logger.SetLevel(logLevel)

	return nil
}

// ParseAndSetDebugLevels sets the log levels from a debug level string. It is
// either a single level applied to every subsystem or a comma separated list
// of <subsystem>=<level> pairs, optionally preceded by a global level.
func ParseAndSetDebugLevels(debugLevel string) error {
	for _, pair := range strings.Split(debugLevel, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		if !strings.Contains(pair, "=") {
			for subsystem := range subsystemLoggers {
				if err := setLogLevel(subsystem, pair); err != nil {
					return err
				}
			}

			continue
		}

		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("invalid debug level pair %q, use "+
				"<subsystem>=<level>", pair)
		}

		err := setLogLevel(strings.TrimSpace(fields[0]),
			strings.TrimSpace(fields[1]))
		if err != nil {
			return err
		}
	}

	return nil
}
