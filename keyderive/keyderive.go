package keyderive

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

var (
	// ErrDecode is returned when an extended key can't be decoded, for
	// example because of a bad base58 checksum or an invalid length.
	ErrDecode = errors.New("unable to decode extended public key")

	// ErrHardenedDerivation is returned when a relative path asks for a
	// hardened child. Those can't be derived without the private key.
	ErrHardenedDerivation = errors.New("hardened derivation is not " +
		"possible from an extended public key")

	// ErrInvalidSegment is returned when a path segment isn't an integer
	// in the non-hardened index range.
	ErrInvalidSegment = errors.New("invalid derivation path segment")
)

// MaxIndex is the largest non-hardened child index.
const MaxIndex = hdkeychain.HardenedKeyStart - 1

// Node is an extended public key reached by applying a relative path to a
// parent extended key.
type Node struct {
	// Key is the derived extended public key.
	Key *hdkeychain.ExtendedKey

	// Path is the relative path that was applied to the parent key.
	Path []uint32
}

// PubKey returns the public key of the node.
func (n *Node) PubKey() (*btcec.PublicKey, error) {
	return n.Key.ECPubKey()
}

// ParsePath parses a relative, non-hardened derivation path such as "0/5".
// Empty segments are skipped, so leading, trailing and doubled slashes are
// tolerated. An empty path yields an empty, non-nil slice.
func ParsePath(relative string) ([]uint32, error) {
	path := make([]uint32, 0)
	for _, segment := range strings.Split(relative, "/") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		if strings.ContainsAny(segment, "'h") {
			return nil, fmt.Errorf("%w: segment %q of path %q",
				ErrHardenedDerivation, segment, relative)
		}

		index, err := strconv.ParseUint(segment, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: %q must be an integer "+
				"between 0 and %d", ErrInvalidSegment, segment,
				MaxIndex)
		}

		path = append(path, uint32(index))
	}

	return path, nil
}

// Decode parses a base58 encoded extended key. Private extended keys are
// neutered so only public derivation is ever performed.
func Decode(xpub string) (*hdkeychain.ExtendedKey, error) {
	key, err := hdkeychain.NewKeyFromString(strings.TrimSpace(xpub))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if key.IsPrivate() {
		log.Warnf("Extended private key given, only its public " +
			"part will be used")

		key, err = key.Neuter()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}

	return key, nil
}

// Derive decodes the extended public key and applies the relative path to
// it, one public child derivation per segment from left to right. An empty
// path returns the root node. Nothing is returned on error.
func Derive(xpub, relative string) (*Node, error) {
	key, err := Decode(xpub)
	if err != nil {
		return nil, err
	}

	path, err := ParsePath(relative)
	if err != nil {
		return nil, err
	}

	return DerivePath(key, path)
}

// DerivePath applies already parsed indices to an extended key.
func DerivePath(key *hdkeychain.ExtendedKey, path []uint32) (*Node, error) {
	for _, index := range path {
		if index > MaxIndex {
			return nil, fmt.Errorf("%w: index %d is hardened",
				ErrHardenedDerivation, index)
		}

		child, err := key.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("unable to derive child %d: %w",
				index, err)
		}
		key = child
	}

	log.Debugf("Derived key at depth %d via relative path %v",
		key.Depth(), path)

	return &Node{
		Key:  key,
		Path: path,
	}, nil
}

// CheckNetwork reports whether the extended key's version bytes belong to
// the given network. A mismatch is only a warning: xpubs are often shared in
// mainnet encoding even for test wallets, and derivation doesn't depend on
// the version bytes.
func CheckNetwork(key *hdkeychain.ExtendedKey, net *chaincfg.Params) bool {
	if key.IsForNet(net) {
		return true
	}

	version := key.Version()
	log.Warnf("Extended key version %x is not a %v public key version "+
		"(%x)", version, net.Name, net.HDPublicKeyID[:])

	return false
}
