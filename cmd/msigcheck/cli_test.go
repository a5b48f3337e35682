package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aakselrod/multisigcheck/descriptor"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	vectorXPub = "xpub6FQywvvaYNWevawA3PkVMa7mmpP17zPkzKew18NZvQqjw9Q2ixyKwz" +
		"oowVVgmmrHveDEwioLSRf6kvSEmjLqpgQY44pki8iKU6wXKeHBLKc"

	vectorSig = "ICS0jkidZe+rvBfg/eXgzmCMelTGAT5/PAJ3EJcK8luIPEHxZ/FpfknidQj" +
		"f0qn5x2SvkH7FCGLcxliGWdOT11w="

	vectorDescriptor = "wsh(sortedmulti(1,[d34db33f/48h/0h/0h/2h]" +
		vectorXPub + "/0/*))"
)

// run runs the CLI with the given arguments and stdin and decodes its JSON
// output into resp.
func run(t *testing.T, stdin string, resp interface{},
	args ...string) error {

	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out

	err := app.Run(append([]string{"msigcheck"}, args...))
	if err != nil {
		return err
	}

	require.NoError(t, json.Unmarshal(out.Bytes(), resp))

	return nil
}

func TestExtract(t *testing.T) {
	var resp struct {
		Entries []descriptor.Entry `json:"entries"`
	}
	require.NoError(t, run(t, vectorDescriptor, &resp, "extract"))
	require.Equal(t, []descriptor.Entry{{
		XPub:        vectorXPub,
		BasePath:    "/48'/0'/0'/2'",
		Fingerprint: "d34db33f",
	}}, resp.Entries)

	// The same from a file.
	file := filepath.Join(t.TempDir(), "wallet.txt")
	require.NoError(t, os.WriteFile(file, []byte(vectorDescriptor), 0600))
	resp.Entries = nil
	require.NoError(t, run(t, "", &resp, "extract", file))
	require.Len(t, resp.Entries, 1)
}

func TestDeriveAndVerify(t *testing.T) {
	var derived struct {
		Address string   `json:"address"`
		Path    []uint32 `json:"path"`
	}
	require.NoError(t, run(t, "", &derived, "derive",
		"--xpub", vectorXPub, "--path", "0", "--type", "legacy"))
	require.Equal(t, []uint32{0}, derived.Path)

	var verdict verifyResult
	require.NoError(t, run(t, "", &verdict, "verify",
		"--message", "test", "--signature", vectorSig,
		"--format", "electrum", "--address", derived.Address))
	require.True(t, verdict.Valid)

	// Deriving the address on the fly gives the same result.
	verdict = verifyResult{}
	require.NoError(t, run(t, "", &verdict, "verify",
		"--message", "test", "--signature", vectorSig,
		"--format", "electrum", "--xpub", vectorXPub, "--path", "0",
		"--type", "legacy"))
	require.Equal(t, derived.Address, verdict.Address)
	require.True(t, verdict.Valid)

	// The default message wasn't signed.
	verdict = verifyResult{}
	require.NoError(t, run(t, "", &verdict, "verify",
		"--signature", vectorSig, "--format", "electrum",
		"--address", derived.Address))
	require.False(t, verdict.Valid)
}

func TestVerifyUsage(t *testing.T) {
	var verdict verifyResult
	err := run(t, "", &verdict, "verify", "--signature", vectorSig,
		"--format", "electrum")

	var usageErr *invalidUsageError
	require.ErrorAs(t, err, &usageErr)
	require.Equal(t, "verify", usageErr.command)
}

func TestCompat(t *testing.T) {
	var resp struct {
		Compatible bool   `json:"compatible"`
		Note       string `json:"note"`
	}
	require.NoError(t, run(t, "", &resp, "compat", "--format", "bip137",
		"--type", "taproot"))
	require.False(t, resp.Compatible)
	require.Contains(t, resp.Note, "bip137")

	err := run(t, "", &resp, "compat", "--format", "pgp", "--type",
		"taproot")
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestChallenge(t *testing.T) {
	var resp struct {
		Challenge string `json:"challenge"`
	}
	require.NoError(t, run(t, vectorDescriptor, &resp, "challenge",
		"--path", "0/7"))
	require.Equal(t, "default\nm/48'/0'/0'/2'/0/7", resp.Challenge)

	err := run(t, vectorDescriptor, &resp, "challenge", "--index", "1")
	var usageErr *invalidUsageError
	require.ErrorAs(t, err, &usageErr)
}

func TestNetworkFlags(t *testing.T) {
	var derived struct {
		Address string `json:"address"`
	}
	require.NoError(t, run(t, "", &derived, "--testnet", "derive",
		"--xpub", vectorXPub, "--path", "0"))
	require.True(t, strings.HasPrefix(derived.Address, "tb1q"))

	err := run(t, "", &derived, "--testnet", "--signet", "derive",
		"--xpub", vectorXPub)
	require.ErrorContains(t, err, "can't be used together")
}
