package main

import (
	"context"

	"github.com/aakselrod/multisigcheck/verifyrpc"
	"github.com/urfave/cli/v2"
)

var compat = cli.Command{
	Name:  "compat",
	Usage: "check whether a signature format works with an address type",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "format",
			Usage:    "the signature format: electrum, bip137 or bip322",
			Required: true,
		},
		&cli.StringFlag{
			Name: "type",
			Usage: "the address type: legacy, segwit, " +
				"segwit-wrapped or taproot",
			Required: true,
		},
	},
	Action: compatAction,
}

func compatAction(ctx *cli.Context) error {
	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := client.CheckCompatibility(
		context.Background(), &verifyrpc.CheckCompatibilityRequest{
			Format:      ctx.String("format"),
			AddressType: ctx.String("type"),
		},
	)
	if err != nil {
		return err
	}

	return printRespJSON(ctx.App.Writer, resp)
}
