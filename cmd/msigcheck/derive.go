package main

import (
	"context"

	"github.com/aakselrod/multisigcheck/verifyrpc"
	"github.com/urfave/cli/v2"
)

var derive = cli.Command{
	Name:  "derive",
	Usage: "derive the address of a child key of an xpub",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "xpub",
			Usage:    "the extended public key to derive from",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "path",
			Usage: "the non-hardened relative path, e.g. 0/5",
		},
		&cli.StringFlag{
			Name: "type",
			Usage: "the address type: legacy, segwit, " +
				"segwit-wrapped or taproot",
			Value: "segwit",
		},
	},
	Action: deriveAction,
}

func deriveAction(ctx *cli.Context) error {
	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := client.DeriveAddress(
		context.Background(), &verifyrpc.DeriveAddressRequest{
			XPub:         ctx.String("xpub"),
			RelativePath: ctx.String("path"),
			AddressType:  ctx.String("type"),
		},
	)
	if err != nil {
		return err
	}

	return printRespJSON(ctx.App.Writer, resp)
}
