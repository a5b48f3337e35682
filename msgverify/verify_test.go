package msgverify

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/aakselrod/multisigcheck/address"
	"github.com/aakselrod/multisigcheck/internal/testsigner"
	"github.com/aakselrod/multisigcheck/keyderive"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

const (
	vectorXPub = "xpub6FQywvvaYNWevawA3PkVMa7mmpP17zPkzKew18NZvQqjw9Q2ixyKwz" +
		"oowVVgmmrHveDEwioLSRf6kvSEmjLqpgQY44pki8iKU6wXKeHBLKc"

	vectorSig = "ICS0jkidZe+rvBfg/eXgzmCMelTGAT5/PAJ3EJcK8luIPEHxZ/FpfknidQj" +
		"f0qn5x2SvkH7FCGLcxliGWdOT11w="

	testMessage = "proof of control\nm/48'/0'/0'/2'/0"
)

var (
	mainNet = &chaincfg.MainNetParams

	testSeed = bytes.Repeat([]byte{0x42}, 32)
)

type testKey struct {
	priv *btcec.PrivateKey
	addr map[address.Type]string
}

func newTestKey(t *testing.T, net *chaincfg.Params) *testKey {
	t.Helper()

	signer, err := testsigner.New(testSeed, net)
	require.NoError(t, err)

	priv, err := signer.DerivePrivKey(
		testsigner.Hardened(48), testsigner.Hardened(0),
		testsigner.Hardened(0), testsigner.Hardened(2), 0, 0,
	)
	require.NoError(t, err)

	key := &testKey{
		priv: priv,
		addr: make(map[address.Type]string),
	}
	for _, addrType := range []address.Type{
		address.Legacy, address.Segwit, address.SegwitWrapped,
		address.Taproot,
	} {
		addr, err := address.Build(priv.PubKey(), addrType, net)
		require.NoError(t, err)
		key.addr[addrType] = addr.EncodeAddress()
	}

	return key
}

func (k *testKey) compact(t *testing.T, header byte) string {
	t.Helper()

	sig, err := testsigner.SignCompact(k.priv, testMessage, header)
	require.NoError(t, err)

	return sig
}

func (k *testKey) bip322(t *testing.T, addrType address.Type,
	full bool) string {

	t.Helper()

	sig, err := testsigner.SignBIP322(
		k.priv, testMessage, k.addr[addrType], mainNet, full,
	)
	require.NoError(t, err)

	return sig
}

func TestVerifyKnownSignature(t *testing.T) {
	node, err := keyderive.Derive(vectorXPub, "0")
	require.NoError(t, err)
	pubKey, err := node.PubKey()
	require.NoError(t, err)
	addr, err := address.Build(pubKey, address.Legacy, mainNet)
	require.NoError(t, err)

	valid, err := Verify("test", vectorSig, addr.EncodeAddress(), Electrum,
		mainNet)
	require.NoError(t, err)
	require.True(t, valid)

	// The url safe alphabet is accepted as well.
	urlSig := strings.NewReplacer("+", "-", "/", "_").Replace(vectorSig)
	valid, err = Verify("test", urlSig, addr.EncodeAddress(), Electrum,
		mainNet)
	require.NoError(t, err)
	require.True(t, valid)

	// A different message is a clean negative result.
	valid, err = Verify("tset", vectorSig, addr.EncodeAddress(), Electrum,
		mainNet)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestVerifyCompact(t *testing.T) {
	key := newTestKey(t, mainNet)

	testCases := []struct {
		name     string
		addrType address.Type
		header   byte
		format   Format
		valid    bool
	}{{
		name:     "legacy electrum",
		addrType: address.Legacy,
		header:   testsigner.HeaderP2PKH,
		format:   Electrum,
		valid:    true,
	}, {
		name:     "legacy bip137",
		addrType: address.Legacy,
		header:   testsigner.HeaderP2PKH,
		format:   BIP137,
		valid:    true,
	}, {
		name:     "legacy uncompressed header",
		addrType: address.Legacy,
		header:   testsigner.HeaderP2PKHUncompressed,
		format:   Electrum,
		valid:    false,
	}, {
		name:     "legacy bip322 compact",
		addrType: address.Legacy,
		header:   testsigner.HeaderP2PKH,
		format:   BIP322,
		valid:    true,
	}, {
		name:     "segwit electrum",
		addrType: address.Segwit,
		header:   testsigner.HeaderP2WPKH,
		format:   Electrum,
		valid:    true,
	}, {
		name:     "segwit bip137",
		addrType: address.Segwit,
		header:   testsigner.HeaderP2WPKH,
		format:   BIP137,
		valid:    true,
	}, {
		name:     "segwit electrum with p2pkh header",
		addrType: address.Segwit,
		header:   testsigner.HeaderP2PKH,
		format:   Electrum,
		valid:    true,
	}, {
		name:     "segwit bip137 with p2pkh header",
		addrType: address.Segwit,
		header:   testsigner.HeaderP2PKH,
		format:   BIP137,
		valid:    false,
	}, {
		name:     "wrapped bip137",
		addrType: address.SegwitWrapped,
		header:   testsigner.HeaderP2SHP2WPKH,
		format:   BIP137,
		valid:    true,
	}, {
		name:     "wrapped bip137 with p2wpkh header",
		addrType: address.SegwitWrapped,
		header:   testsigner.HeaderP2WPKH,
		format:   BIP137,
		valid:    false,
	}, {
		name:     "wrapped electrum with p2wpkh header",
		addrType: address.SegwitWrapped,
		header:   testsigner.HeaderP2WPKH,
		format:   Electrum,
		valid:    true,
	}}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			valid, err := Verify(
				testMessage, key.compact(t, tc.header),
				key.addr[tc.addrType], tc.format, mainNet,
			)
			require.NoError(t, err)
			require.Equal(t, tc.valid, valid)
		})
	}
}

func TestVerifyBIP322(t *testing.T) {
	key := newTestKey(t, mainNet)

	testCases := []struct {
		name     string
		addrType address.Type
		full     bool
		format   Format
	}{{
		name:     "segwit simple",
		addrType: address.Segwit,
		format:   BIP322,
	}, {
		name:     "segwit full",
		addrType: address.Segwit,
		full:     true,
		format:   BIP322,
	}, {
		name:     "segwit simple as electrum",
		addrType: address.Segwit,
		format:   Electrum,
	}, {
		name:     "wrapped simple",
		addrType: address.SegwitWrapped,
		format:   BIP322,
	}, {
		name:     "wrapped full",
		addrType: address.SegwitWrapped,
		full:     true,
		format:   BIP322,
	}, {
		name:     "taproot simple",
		addrType: address.Taproot,
		format:   BIP322,
	}, {
		name:     "taproot full",
		addrType: address.Taproot,
		full:     true,
		format:   BIP322,
	}, {
		name:     "legacy full",
		addrType: address.Legacy,
		full:     true,
		format:   BIP322,
	}}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			sig := key.bip322(t, tc.addrType, tc.full)
			addr := key.addr[tc.addrType]

			valid, err := Verify(
				testMessage, sig, addr, tc.format, mainNet,
			)
			require.NoError(t, err)
			require.True(t, valid)

			// The same signature doesn't prove anything for
			// another message.
			valid, err = Verify(
				"other message", sig, addr, tc.format, mainNet,
			)
			require.NoError(t, err)
			require.False(t, valid)
		})
	}
}

func TestVerifyBIP322SignOrder(t *testing.T) {
	key := newTestKey(t, mainNet)

	// Taproot signing tweaks the key, anything signed afterwards with the
	// same key must still verify.
	order := []address.Type{
		address.Taproot, address.Legacy, address.Taproot,
		address.Segwit, address.SegwitWrapped,
	}
	for i, addrType := range order {
		sig := key.bip322(t, addrType, true)

		valid, err := Verify(
			testMessage, sig, key.addr[addrType], BIP322, mainNet,
		)
		require.NoError(t, err)
		require.True(t, valid, "%d: %v", i, addrType)
	}

	sig := key.compact(t, testsigner.HeaderP2WPKH)
	valid, err := Verify(
		testMessage, sig, key.addr[address.Segwit], BIP137, mainNet,
	)
	require.NoError(t, err)
	require.True(t, valid)
}

func TestVerifyBIP322WrongKey(t *testing.T) {
	key := newTestKey(t, mainNet)

	other, err := testsigner.New(bytes.Repeat([]byte{0x24}, 32), mainNet)
	require.NoError(t, err)
	otherPriv, err := other.DerivePrivKey(0)
	require.NoError(t, err)

	for _, addrType := range []address.Type{
		address.Segwit, address.Taproot,
	} {
		// Sign the to_sign transaction of our address with a key that
		// doesn't control it.
		sig, err := testsigner.SignBIP322(
			otherPriv, testMessage, key.addr[addrType], mainNet,
			false,
		)
		require.NoError(t, err)

		valid, err := Verify(
			testMessage, sig, key.addr[addrType], BIP322, mainNet,
		)
		require.NoError(t, err)
		require.False(t, valid, addrType.String())
	}
}

func TestVerifyFullSignatureForOtherAddress(t *testing.T) {
	key := newTestKey(t, mainNet)

	// A full to_sign transaction spends the to_spend of its own address,
	// so it can't be replayed for another address of the same key.
	sig := key.bip322(t, address.Taproot, true)
	valid, err := Verify(
		testMessage, sig, key.addr[address.Segwit], BIP322, mainNet,
	)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestVerifyCompatibility(t *testing.T) {
	key := newTestKey(t, mainNet)
	sig := key.bip322(t, address.Taproot, false)

	for _, format := range []Format{Electrum, BIP137} {
		_, err := Verify(
			testMessage, sig, key.addr[address.Taproot], format,
			mainNet,
		)
		require.ErrorIs(t, err, ErrCompatibility, format.String())
	}

	// The compatibility check comes before the signature is looked at.
	_, err := Verify(
		testMessage, "", key.addr[address.Taproot], Electrum, mainNet,
	)
	require.ErrorIs(t, err, ErrCompatibility)
}

func TestVerifyMalformedSignature(t *testing.T) {
	key := newTestKey(t, mainNet)
	legacy := key.addr[address.Legacy]
	segwit := key.addr[address.Segwit]

	invalidHeader := make([]byte, compactSigSize)
	invalidHeader[0] = 43

	testCases := []struct {
		name   string
		sig    string
		addr   string
		format Format
	}{{
		name:   "absent",
		sig:    "  ",
		addr:   legacy,
		format: Electrum,
	}, {
		name:   "odd length",
		sig:    "abc",
		addr:   legacy,
		format: Electrum,
	}, {
		name:   "not base64",
		sig:    "!!!!",
		addr:   legacy,
		format: Electrum,
	}, {
		name:   "short electrum legacy",
		sig:    "AAAA",
		addr:   legacy,
		format: Electrum,
	}, {
		name:   "short bip137",
		sig:    "AAAA",
		addr:   segwit,
		format: BIP137,
	}, {
		name:   "neither witness nor transaction",
		sig:    "AAAA",
		addr:   segwit,
		format: BIP322,
	}, {
		name:   "invalid header",
		sig:    base64.StdEncoding.EncodeToString(invalidHeader),
		addr:   legacy,
		format: BIP137,
	}}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			valid, err := Verify(
				testMessage, tc.sig, tc.addr, tc.format, mainNet,
			)
			require.ErrorIs(t, err, ErrMalformedSignature)
			require.False(t, valid)
		})
	}
}

func TestVerifyInvalidAddress(t *testing.T) {
	key := newTestKey(t, mainNet)
	sig := key.compact(t, testsigner.HeaderP2PKH)

	for _, addr := range []string{
		"notanaddress",
		key.addr[address.Legacy] + "x",
	} {
		_, err := Verify(testMessage, sig, addr, Electrum, mainNet)
		require.ErrorIs(t, err, ErrInvalidAddress, addr)
	}

	// Addresses of another network are rejected too.
	testKey := newTestKey(t, &chaincfg.TestNet3Params)
	_, err := Verify(
		testMessage, sig, testKey.addr[address.Segwit], Electrum,
		mainNet,
	)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestVerifyTestnet(t *testing.T) {
	net := &chaincfg.TestNet3Params
	key := newTestKey(t, net)

	sig, err := testsigner.SignBIP322(
		key.priv, testMessage, key.addr[address.Taproot], net, false,
	)
	require.NoError(t, err)

	valid, err := Verify(
		testMessage, sig, key.addr[address.Taproot], BIP322, net,
	)
	require.NoError(t, err)
	require.True(t, valid)
}

func TestDecodeSignature(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0xfe, 0x01}

	for _, encoded := range []string{
		"+//+AQ==",
		"-__-AQ==",
		"-__-AQ",
		" +//+AQ==\n",
	} {
		sig, err := DecodeSignature(encoded)
		require.NoError(t, err, encoded)
		require.Equal(t, raw, sig, encoded)
	}

	_, err := DecodeSignature("+//+AQ=")
	require.ErrorIs(t, err, ErrMalformedSignature)

	// A compact signature is 65 bytes, 88 characters padded but 87
	// without padding, which is an odd length.
	compact := bytes.Repeat([]byte{0xfb}, 65)
	sig, err := DecodeSignature(base64.URLEncoding.EncodeToString(compact))
	require.NoError(t, err)
	require.Equal(t, compact, sig)

	unpadded := base64.RawURLEncoding.EncodeToString(compact)
	require.Len(t, unpadded, 87)
	_, err = DecodeSignature(unpadded)
	require.ErrorIs(t, err, ErrMalformedSignature)
}

func TestCheckCompatibility(t *testing.T) {
	require.Equal(
		t, Compatibility{Compatible: true},
		CheckCompatibility(BIP322, address.Taproot),
	)
	require.True(t, CheckCompatibility(BIP137, address.Legacy).Compatible)
	require.True(t, CheckCompatibility(Electrum, address.Segwit).Compatible)

	for _, format := range []Format{Electrum, BIP137} {
		compat := CheckCompatibility(format, address.Taproot)
		require.False(t, compat.Compatible)
		require.Contains(t, compat.Note, format.String())
	}
}

func TestParseFormat(t *testing.T) {
	for _, format := range []Format{Electrum, BIP137, BIP322} {
		parsed, err := ParseFormat(" " + strings.ToUpper(format.String()))
		require.NoError(t, err)
		require.Equal(t, format, parsed)
	}

	_, err := ParseFormat("bip999")
	require.ErrorIs(t, err, ErrUnknownFormat)

	var format Format
	require.NoError(t, format.UnmarshalText([]byte("bip137")))
	require.Equal(t, BIP137, format)

	_, err = Format(7).MarshalText()
	require.ErrorIs(t, err, ErrUnknownFormat)
}
