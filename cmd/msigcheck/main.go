package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aakselrod/multisigcheck"
	"github.com/aakselrod/multisigcheck/verifyrpc"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
)

const (
	defaultTLSCertFilename  = "tls.cert"
	defaultAdminMacFilename = "admin.macaroon"
)

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()

	app.Version = multisigcheck.Version
	app.Name = "msigcheck"
	app.Usage = "Check that multisig collaborators control their keys"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name: "rpcserver",
			Usage: "host:port of a msigcheckd daemon, the checks run " +
				"locally if empty",
		},
		&cli.StringFlag{
			Name:  "tlscertpath",
			Usage: "path to the daemon's TLS certificate",
			Value: filepath.Join(
				multisigcheck.DefaultAppDir, defaultTLSCertFilename,
			),
		},
		&cli.StringFlag{
			Name: "macaroonpath",
			Usage: "path to the macaroon for the daemon, defaults to " +
				"the admin macaroon of the selected network",
		},
		&cli.BoolFlag{
			Name:  "no-macaroons",
			Usage: "don't send a macaroon to the daemon",
		},
		&cli.BoolFlag{
			Name:  "testnet",
			Usage: "use testnet3 addresses",
		},
		&cli.BoolFlag{
			Name:  "regtest",
			Usage: "use regtest addresses",
		},
		&cli.BoolFlag{
			Name:  "signet",
			Usage: "use signet addresses",
		},
		&cli.StringFlag{
			Name:  "debuglevel",
			Usage: "log level of the local checks, logs go to stderr",
			Value: "warn",
		},
	}
	app.Commands = append(
		app.Commands,
		&extract,
		&derive,
		&verify,
		&compat,
		&challenge,
	)

	return app
}

// netParams returns the network selected by the global flags.
func netParams(ctx *cli.Context) (*chaincfg.Params, error) {
	params := &chaincfg.MainNetParams
	numNets := 0
	if ctx.Bool("testnet") {
		numNets++
		params = &chaincfg.TestNet3Params
	}
	if ctx.Bool("regtest") {
		numNets++
		params = &chaincfg.RegressionNetParams
	}
	if ctx.Bool("signet") {
		numNets++
		params = &chaincfg.SigNetParams
	}
	if numNets > 1 {
		return nil, errors.New("testnet, regtest and signet can't be " +
			"used together")
	}

	return params, nil
}

// getClient returns a client for the daemon if --rpcserver is set, or one
// running the checks in process otherwise.
func getClient(ctx *cli.Context) (verifyrpc.VerifierClient, func(), error) {
	params, err := netParams(ctx)
	if err != nil {
		return nil, nil, err
	}

	if ctx.String("rpcserver") == "" {
		multisigcheck.SetupLoggers(os.Stderr)
		err := multisigcheck.ParseAndSetDebugLevels(
			ctx.String("debuglevel"),
		)
		if err != nil {
			return nil, nil, err
		}

		return multisigcheck.NewLocalClient(params), func() {}, nil
	}

	conn, err := getClientConn(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = conn.Close() }

	return verifyrpc.NewVerifierClient(conn), cleanup, nil
}

func getClientConn(ctx *cli.Context, params *chaincfg.Params) (
	*grpc.ClientConn, error) {

	creds, err := credentials.NewClientTLSFromFile(
		multisigcheck.CleanAndExpandPath(ctx.String("tlscertpath")), "",
	)
	if err != nil {
		return nil, fmt.Errorf("unable to read TLS certificate: %v", err)
	}

	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}

	if !ctx.Bool("no-macaroons") {
		macPath := ctx.String("macaroonpath")
		if macPath == "" {
			macPath = filepath.Join(
				multisigcheck.DefaultAppDir, "data", params.Name,
				defaultAdminMacFilename,
			)
		}

		macBytes, err := os.ReadFile(
			multisigcheck.CleanAndExpandPath(macPath),
		)
		if err != nil {
			return nil, fmt.Errorf("unable to read macaroon: %v",
				err)
		}

		opts = append(opts, grpc.WithPerRPCCredentials(
			macaroonCredential(hex.EncodeToString(macBytes)),
		))
	}

	conn, err := grpc.Dial(ctx.String("rpcserver"), opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to RPC server: %v",
			err)
	}

	return conn, nil
}

// macaroonCredential sends a hex encoded macaroon with every call.
type macaroonCredential string

// GetRequestMetadata returns the macaroon metadata.
//
// NOTE: This is part of the credentials.PerRPCCredentials interface.
func (m macaroonCredential) GetRequestMetadata(context.Context,
	...string) (map[string]string, error) {

	return map[string]string{"macaroon": string(m)}, nil
}

// RequireTransportSecurity returns true, macaroons are only sent over TLS.
//
// NOTE: This is part of the credentials.PerRPCCredentials interface.
func (m macaroonCredential) RequireTransportSecurity() bool {
	return true
}

// readText returns the contents of the file, or of stdin if path is "-" or
// empty.
func readText(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(multisigcheck.CleanAndExpandPath(path))
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func printRespJSON(w io.Writer, resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return fmt.Errorf("unable to encode response: %v", err)
	}

	_, err = fmt.Fprintln(w, string(jsonBytes))

	return err
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
	reason  string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s: %s", e.command,
		e.reason)
}

func fatal(err error) {
	var e *invalidUsageError
	switch {
	case errors.As(err, &e):
		_, _ = fmt.Fprintf(os.Stderr, "[msigcheck] %v\n", err)
		_ = cli.ShowCommandHelp(e.ctx, e.command)

	default:
		// Status errors are reported with their kind instead of the
		// gRPC code.
		if st, ok := status.FromError(err); ok {
			kind := multisigcheck.ErrorKindFromStatus(err)
			_, _ = fmt.Fprintf(os.Stderr, "[msigcheck] %s: %s\n",
				kind, st.Message())
			break
		}

		_, _ = fmt.Fprintf(os.Stderr, "[msigcheck] %v\n", err)
	}
	os.Exit(1)
}
