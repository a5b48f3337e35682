package main

import (
	"context"

	"github.com/aakselrod/multisigcheck/verifyrpc"
	"github.com/urfave/cli/v2"
)

var extract = cli.Command{
	Name:      "extract",
	Usage:     "list the xpubs of a wallet descriptor or config export",
	ArgsUsage: "[file]",
	Description: "Reads the descriptor from the file or from stdin and " +
		"prints every xpub with its base path and fingerprint.",
	Action: extractAction,
}

func extractAction(ctx *cli.Context) error {
	text, err := readText(ctx.Args().First(), ctx.App.Reader)
	if err != nil {
		return err
	}

	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := client.ExtractEntries(
		context.Background(), &verifyrpc.ExtractEntriesRequest{
			Text: text,
		},
	)
	if err != nil {
		return err
	}

	return printRespJSON(ctx.App.Writer, resp)
}
