package address

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// generatorPubKey is the public key for the private key 1.
const generatorPubKey = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func parsePubKey(t *testing.T, keyHex string) *btcec.PublicKey {
	t.Helper()

	keyBytes, err := hex.DecodeString(keyHex)
	require.NoError(t, err)

	pubKey, err := btcec.ParsePubKey(keyBytes)
	require.NoError(t, err)

	return pubKey
}

func TestBuildKnownAddresses(t *testing.T) {
	pubKey := parsePubKey(t, generatorPubKey)

	legacy, err := Build(pubKey, Legacy, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH",
		legacy.EncodeAddress())

	segwit, err := Build(pubKey, Segwit, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
		segwit.EncodeAddress())
}

func TestBuildTaprootTweaksKey(t *testing.T) {
	// BIP-0086 vector for m/86'/0'/0'/0/0 of the "abandon ... about"
	// mnemonic. The x-only internal key is lifted with an even Y.
	pubKey := parsePubKey(
		t, "02cc8a4bc64d897bddc5fbc2f670f7a8ba0b386779106cf1223c6f"+
			"c5d7cd6fc115",
	)

	addr, err := Build(pubKey, Taproot, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t,
		"bc1p5cyxnuxmeuwuvkwfem96lqzszd02n6xdcjrs20cac6yqjjwudpxqkedrcr",
		addr.EncodeAddress(),
	)

	// The parity byte of the compressed key must not matter.
	odd := parsePubKey(
		t, "03cc8a4bc64d897bddc5fbc2f670f7a8ba0b386779106cf1223c6f"+
			"c5d7cd6fc115",
	)
	oddAddr, err := Build(odd, Taproot, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, addr.EncodeAddress(), oddAddr.EncodeAddress())
}

func TestBuildSegwitWrapped(t *testing.T) {
	pubKey := parsePubKey(t, generatorPubKey)

	addr, err := Build(pubKey, SegwitWrapped, &chaincfg.MainNetParams)
	require.NoError(t, err)

	redeemScript, err := WrappedRedeemScript(pubKey.SerializeCompressed())
	require.NoError(t, err)
	require.Len(t, redeemScript, 22)
	require.Equal(t, btcutil.Hash160(redeemScript), addr.ScriptAddress())
	require.Equal(t, byte('3'), addr.EncodeAddress()[0])
}

func TestBuildRoundTripsThroughInference(t *testing.T) {
	pubKey := parsePubKey(t, generatorPubKey)

	nets := []*chaincfg.Params{
		&chaincfg.MainNetParams,
		&chaincfg.TestNet3Params,
		&chaincfg.RegressionNetParams,
	}
	types := []Type{Legacy, Segwit, SegwitWrapped, Taproot}

	for _, net := range nets {
		for _, addrType := range types {
			addr, err := Build(pubKey, addrType, net)
			require.NoError(t, err)

			encoded := addr.EncodeAddress()
			require.Equal(t, addrType, InferType(encoded),
				"%v on %v: %v", addrType, net.Name, encoded)

			_, pkScript, err := PkScript(encoded, net)
			require.NoError(t, err)
			require.NotEmpty(t, pkScript)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	pubKey := parsePubKey(t, generatorPubKey)

	for _, addrType := range []Type{Legacy, Segwit, SegwitWrapped, Taproot} {
		first, err := Build(pubKey, addrType, &chaincfg.MainNetParams)
		require.NoError(t, err)
		second, err := Build(pubKey, addrType, &chaincfg.MainNetParams)
		require.NoError(t, err)
		require.Equal(t, first.EncodeAddress(), second.EncodeAddress())
	}
}

func TestBuildUnknownType(t *testing.T) {
	pubKey := parsePubKey(t, generatorPubKey)

	_, err := Build(pubKey, Type(42), &chaincfg.MainNetParams)
	require.ErrorIs(t, err, ErrUnknownType)

	_, err = Build(nil, Legacy, &chaincfg.MainNetParams)
	require.Error(t, err)
}

func TestInferType(t *testing.T) {
	tests := []struct {
		addr string
		want Type
	}{
		{"bc1p5cyxnuxmeuwuvkwfem96lqzszd02n6xdcjrs20cac6yqjjwudpxqkedrcr", Taproot},
		{"tb1pqqqqp399et2xygdj5xreqhjjvcmzhxw4aywxecjdzew6hylgvsesf3hn0c", Taproot},
		{"bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", Segwit},
		{"TB1QW508D6QEJXTDG4Y5R3ZARVARY0C5XW7KXPJZSX", Segwit},
		{"3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", SegwitWrapped},
		{"2N2JD6wb56AfK4tfmM6PwdVmoYk2dCKf4Br", SegwitWrapped},
		{"1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", Legacy},
		{"mipcBbFg9gMiCh81Kj8tqqdgoZub1ZJRfn", Legacy},
		{"", Legacy},
	}

	for _, test := range tests {
		require.Equal(t, test.want, InferType(test.addr), test.addr)
	}
}

func TestParseType(t *testing.T) {
	for addrType, name := range typeNames {
		parsed, err := ParseType(name)
		require.NoError(t, err)
		require.Equal(t, addrType, parsed)
	}

	parsed, err := ParseType(" Segwit-Wrapped ")
	require.NoError(t, err)
	require.Equal(t, SegwitWrapped, parsed)

	_, err = ParseType("p2sh")
	require.ErrorIs(t, err, ErrUnknownType)

	var addrType Type
	require.NoError(t, addrType.UnmarshalText([]byte("taproot")))
	require.Equal(t, Taproot, addrType)

	text, err := Segwit.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "segwit", string(text))
}
