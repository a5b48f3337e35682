package main

import (
	"fmt"
	"os"

	"github.com/aakselrod/multisigcheck"
	flags "github.com/jessevdk/go-flags"
)

func main() {
	multisigcheck.SetupLoggers(os.Stdout)

	// Load the configuration, and parse any command line options. This
	// function will also set up logging properly.
	cfg, err := multisigcheck.LoadConfig(os.Args[1:])
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			// Print error if not due to help request.
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Help was requested, exit normally.
		os.Exit(0)
	}

	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := multisigcheck.Main(cfg, multisigcheck.ListenerCfg{}); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
