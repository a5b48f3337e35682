package multisigcheck

import (
	"encoding/hex"
	"errors"

	"github.com/aakselrod/multisigcheck/address"
	"github.com/aakselrod/multisigcheck/descriptor"
	"github.com/aakselrod/multisigcheck/keyderive"
	"github.com/aakselrod/multisigcheck/msgverify"
	"github.com/btcsuite/btcd/chaincfg"
)

// DefaultMessage is the message used when the caller doesn't provide one.
const DefaultMessage = "default"

// DerivedKey is a child key of an xpub and its address.
type DerivedKey struct {
	Address string `json:"address"`

	// PublicKey is the hex encoded compressed public key.
	PublicKey string `json:"public_key"`

	// Path is the relative path that was applied to the xpub.
	Path []uint32 `json:"path"`
}

// Checker runs the key control checks for one network. It holds no other
// state and is safe for concurrent use.
type Checker struct {
	net *chaincfg.Params
}

// NewChecker returns a checker for the given network.
func NewChecker(net *chaincfg.Params) *Checker {
	return &Checker{
		net: net,
	}
}

// Net returns the network the checker builds and decodes addresses for.
func (c *Checker) Net() *chaincfg.Params {
	return c.net
}

// ExtractEntries finds all xpubs in a wallet descriptor or config export.
func (c *Checker) ExtractEntries(text string) []descriptor.Entry {
	return descriptor.Extract(text)
}

// DeriveAddress derives the child of the xpub at the relative path and
// returns its address of the given type.
func (c *Checker) DeriveAddress(xpub, relativePath string,
	addrType address.Type) (*DerivedKey, error) {

	node, err := keyderive.Derive(xpub, relativePath)
	if err != nil {
		return nil, err
	}

	// Only a warning, xpubs are often shared in mainnet encoding.
	keyderive.CheckNetwork(node.Key, c.net)

	pubKey, err := node.PubKey()
	if err != nil {
		return nil, err
	}

	addr, err := address.Build(pubKey, addrType, c.net)
	if err != nil {
		return nil, err
	}

	return &DerivedKey{
		Address:   addr.EncodeAddress(),
		PublicKey: hex.EncodeToString(pubKey.SerializeCompressed()),
		Path:      node.Path,
	}, nil
}

// VerifySignature checks that the signature over the message proves control
// of the address. See msgverify.Verify for the meaning of the results.
func (c *Checker) VerifySignature(message, signature, addr string,
	format msgverify.Format) (bool, error) {

	return msgverify.Verify(message, signature, addr, format, c.net)
}

// CheckCompatibility reports whether the format can be used with the address
// type, so callers can warn before asking for a signature.
func (c *Checker) CheckCompatibility(format msgverify.Format,
	addrType address.Type) msgverify.Compatibility {

	return msgverify.CheckCompatibility(format, addrType)
}

// Challenge returns the text the collaborator controlling the entry's key is
// asked to sign. An empty message is replaced by DefaultMessage.
func (c *Checker) Challenge(entry descriptor.Entry, relativePath,
	message string) (string, error) {

	if message == "" {
		message = DefaultMessage
	}

	path, err := keyderive.ParsePath(relativePath)
	if err != nil {
		return "", err
	}

	return descriptor.Challenge(entry, path, message), nil
}

// Kind classifies an error so callers can branch on it without matching
// error strings.
type Kind string

const (
	// KindNone is the kind of a nil error.
	KindNone Kind = ""

	KindDecode             Kind = "DECODE"
	KindHardenedDerivation Kind = "HARDENED_DERIVATION"
	KindInvalidSegment     Kind = "INVALID_SEGMENT"
	KindCompatibility      Kind = "COMPATIBILITY"
	KindMalformedSignature Kind = "MALFORMED_SIGNATURE"
	KindInvalidAddress     Kind = "INVALID_ADDRESS"

	// KindInvalidArgument is an unknown address type or signature
	// format name.
	KindInvalidArgument Kind = "INVALID_ARGUMENT"

	// KindInternal is anything else.
	KindInternal Kind = "INTERNAL"
)

// ErrorKind returns the kind of the error.
func ErrorKind(err error) Kind {
	switch {
	case err == nil:
		return KindNone

	case errors.Is(err, keyderive.ErrDecode):
		return KindDecode

	case errors.Is(err, keyderive.ErrHardenedDerivation):
		return KindHardenedDerivation

	case errors.Is(err, keyderive.ErrInvalidSegment):
		return KindInvalidSegment

	case errors.Is(err, msgverify.ErrCompatibility):
		return KindCompatibility

	case errors.Is(err, msgverify.ErrMalformedSignature):
		return KindMalformedSignature

	case errors.Is(err, msgverify.ErrInvalidAddress):
		return KindInvalidAddress

	case errors.Is(err, address.ErrUnknownType),
		errors.Is(err, msgverify.ErrUnknownFormat):

		return KindInvalidArgument

	default:
		return KindInternal
	}
}
