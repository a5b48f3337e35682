package main

import (
	"context"
	"fmt"

	"github.com/aakselrod/multisigcheck"
	"github.com/aakselrod/multisigcheck/verifyrpc"
	"github.com/urfave/cli/v2"
)

var challenge = cli.Command{
	Name:      "challenge",
	Usage:     "print the text a collaborator must sign",
	ArgsUsage: "[file]",
	Description: "Reads the descriptor from the file or from stdin, picks " +
		"the key at --index and prints the message followed by the " +
		"full path of the key to sign it with.",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "index",
			Usage: "the position of the key in the descriptor",
		},
		&cli.StringFlag{
			Name:  "path",
			Usage: "the non-hardened relative path below the key",
		},
		&cli.StringFlag{
			Name:  "message",
			Usage: "the message to sign",
			Value: multisigcheck.DefaultMessage,
		},
	},
	Action: challengeAction,
}

func challengeAction(ctx *cli.Context) error {
	text, err := readText(ctx.Args().First(), ctx.App.Reader)
	if err != nil {
		return err
	}

	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	rpcCtx := context.Background()

	entries, err := client.ExtractEntries(
		rpcCtx, &verifyrpc.ExtractEntriesRequest{
			Text: text,
		},
	)
	if err != nil {
		return err
	}

	index := ctx.Int("index")
	if index < 0 || index >= len(entries.Entries) {
		return &invalidUsageError{
			ctx:     ctx,
			command: "challenge",
			reason: fmt.Sprintf("--index must be below the %d keys "+
				"found", len(entries.Entries)),
		}
	}

	resp, err := client.Challenge(rpcCtx, &verifyrpc.ChallengeRequest{
		Entry:        entries.Entries[index],
		RelativePath: ctx.String("path"),
		Message:      ctx.String("message"),
	})
	if err != nil {
		return err
	}

	return printRespJSON(ctx.App.Writer, resp)
}
