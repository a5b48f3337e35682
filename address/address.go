package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// Type is the output script template an address encodes.
type Type uint8

const (
	// Legacy is a base58check encoded pay-to-pubkey-hash address.
	Legacy Type = iota

	// Segwit is a bech32 encoded native witness v0 pubkey hash address.
	Segwit

	// SegwitWrapped is a P2SH address wrapping a witness v0 pubkey hash
	// redeem script.
	SegwitWrapped

	// Taproot is a bech32m encoded witness v1 key-path-only address.
	Taproot
)

var (
	// ErrUnknownType is returned when an address type name can't be
	// parsed.
	ErrUnknownType = errors.New("unknown address type")

	typeNames = map[Type]string{
		Legacy:        "legacy",
		Segwit:        "segwit",
		SegwitWrapped: "segwit-wrapped",
		Taproot:       "taproot",
	}
)

// String returns the canonical name of the address type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("Type(%d)", uint8(t))
}

// ParseType returns the address type for its canonical name. Matching is case
// insensitive.
func ParseType(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if _, ok := typeNames[t]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}

	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed

	return nil
}

// InferType classifies an address string by its prefix alone. Anything that
// isn't recognised as a witness or script hash address is treated as legacy.
func InferType(addr string) Type {
	addr = strings.TrimSpace(addr)
	lower := strings.ToLower(addr)

	switch {
	case strings.HasPrefix(lower, "bc1p"),
		strings.HasPrefix(lower, "tb1p"),
		strings.HasPrefix(lower, "bcrt1p"):

		return Taproot

	case strings.HasPrefix(lower, "bc1q"),
		strings.HasPrefix(lower, "tb1q"),
		strings.HasPrefix(lower, "bcrt1q"):

		return Segwit

	case strings.HasPrefix(addr, "3"), strings.HasPrefix(addr, "2"):
		return SegwitWrapped

	default:
		return Legacy
	}
}

// Build encodes the given public key as an address of the requested type for
// the given network. The result only depends on its inputs.
func Build(pubKey *btcec.PublicKey, addrType Type,
	net *chaincfg.Params) (btcutil.Address, error) {

	if pubKey == nil {
		return nil, errors.New("no public key given")
	}

	compressed := pubKey.SerializeCompressed()

	var (
		addr btcutil.Address
		err  error
	)
	switch addrType {
	case Legacy:
		addr, err = btcutil.NewAddressPubKeyHash(
			btcutil.Hash160(compressed), net,
		)

	case Segwit:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(compressed), net,
		)

	case SegwitWrapped:
		var redeemScript []byte
		redeemScript, err = WrappedRedeemScript(compressed)
		if err != nil {
			return nil, err
		}
		addr, err = btcutil.NewAddressScriptHash(redeemScript, net)

	case Taproot:
		// The internal key is the x-only form of the compressed key,
		// which is the same as re-parsing it with an even Y.
		var internalKey *btcec.PublicKey
		internalKey, err = schnorr.ParsePubKey(compressed[1:])
		if err != nil {
			return nil, err
		}
		outputKey := txscript.ComputeTaprootKeyNoScript(internalKey)
		addr, err = btcutil.NewAddressTaproot(
			schnorr.SerializePubKey(outputKey), net,
		)

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(addrType))
	}
	if err != nil {
		return nil, fmt.Errorf("unable to build %v address: %w",
			addrType, err)
	}

	log.Tracef("Built %v address %v for key %x", addrType,
		addr.EncodeAddress(), compressed)

	return addr, nil
}

// WrappedRedeemScript returns the witness v0 pubkey hash program that a
// segwit-wrapped address commits to for the given compressed public key.
func WrappedRedeemScript(compressedPubKey []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(btcutil.Hash160(compressedPubKey)).
		Script()
}

// PkScript decodes an address for the given network and returns the output
// script paying to it.
func PkScript(addr string, net *chaincfg.Params) (btcutil.Address, []byte,
	error) {

	decoded, err := btcutil.DecodeAddress(strings.TrimSpace(addr), net)
	if err != nil {
		return nil, nil, err
	}

	if !decoded.IsForNet(net) {
		return nil, nil, fmt.Errorf("address %v is not for network %v",
			addr, net.Name)
	}

	pkScript, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, nil, err
	}

	return decoded, pkScript, nil
}
