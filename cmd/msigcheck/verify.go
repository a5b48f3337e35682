package main

import (
	"context"

	"github.com/aakselrod/multisigcheck"
	"github.com/aakselrod/multisigcheck/verifyrpc"
	"github.com/urfave/cli/v2"
)

var verify = cli.Command{
	Name:  "verify",
	Usage: "verify a signed message against an address",
	Description: "The address is either given with --address or derived " +
		"from --xpub, --path and --type.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "message",
			Usage: "the message that was signed",
			Value: multisigcheck.DefaultMessage,
		},
		&cli.StringFlag{
			Name:     "signature",
			Usage:    "the base64 encoded signature",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "format",
			Usage:    "the signature format: electrum, bip137 or bip322",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "address",
			Usage: "the address the signature must prove control of",
		},
		&cli.StringFlag{
			Name:  "xpub",
			Usage: "the extended public key to derive the address from",
		},
		&cli.StringFlag{
			Name:  "path",
			Usage: "the non-hardened relative path below --xpub",
		},
		&cli.StringFlag{
			Name: "type",
			Usage: "the type of the derived address: legacy, " +
				"segwit, segwit-wrapped or taproot",
			Value: "segwit",
		},
	},
	Action: verifyAction,
}

type verifyResult struct {
	Address string `json:"address"`
	Valid   bool   `json:"valid"`
}

func verifyAction(ctx *cli.Context) error {
	addr := ctx.String("address")
	xpub := ctx.String("xpub")
	if (addr == "") == (xpub == "") {
		return &invalidUsageError{
			ctx:     ctx,
			command: "verify",
			reason:  "set either --address or --xpub",
		}
	}

	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	rpcCtx := context.Background()

	if addr == "" {
		derived, err := client.DeriveAddress(
			rpcCtx, &verifyrpc.DeriveAddressRequest{
				XPub:         xpub,
				RelativePath: ctx.String("path"),
				AddressType:  ctx.String("type"),
			},
		)
		if err != nil {
			return err
		}
		addr = derived.Address
	}

	resp, err := client.VerifySignature(
		rpcCtx, &verifyrpc.VerifySignatureRequest{
			Message:   ctx.String("message"),
			Signature: ctx.String("signature"),
			Address:   addr,
			Format:    ctx.String("format"),
		},
	)
	if err != nil {
		return err
	}

	return printRespJSON(ctx.App.Writer, &verifyResult{
		Address: addr,
		Valid:   resp.Valid,
	})
}
