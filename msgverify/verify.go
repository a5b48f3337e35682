package msgverify

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aakselrod/multisigcheck/address"
	"github.com/aakselrod/multisigcheck/bip322"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// messageMagic is the prefix of the legacy signed message digest.
	messageMagic = "Bitcoin Signed Message:\n"

	// compactSigSize is the size of a recoverable compact signature.
	compactSigSize = 65

	// Header byte ranges of compact signatures, see BIP-0137.
	headerMin             = 27
	headerP2PKHCompressed = 31
	headerP2SHP2WPKH      = 35
	headerP2WPKH          = 39
	headerMax             = 42
)

var (
	// ErrCompatibility is returned when the signature format can't be used
	// with the address type at all.
	ErrCompatibility = errors.New("signature format is incompatible " +
		"with address type")

	// ErrMalformedSignature is returned when the signature can't be
	// decoded or has an invalid length or structure. It means nothing was
	// verified, which is different from a signature that doesn't match.
	ErrMalformedSignature = errors.New("malformed signature")

	// ErrInvalidAddress is returned when the address can't be decoded for
	// the configured network.
	ErrInvalidAddress = errors.New("invalid address")
)

// addrClass is the kind of output a compact signature header commits to.
type addrClass uint8

const (
	classUnknown addrClass = iota
	classP2PKH
	classP2SHP2WPKH
	classP2WPKH
)

// DecodeSignature decodes a base64 or base64url signature. The encoded length
// must be even, so unpadded input is only accepted when its length is even.
func DecodeSignature(signature string) ([]byte, error) {
	signature = strings.TrimSpace(signature)

	switch {
	case len(signature) == 0:
		return nil, fmt.Errorf("%w: signature is absent",
			ErrMalformedSignature)

	case len(signature)%2 != 0:
		return nil, fmt.Errorf("%w: invalid signature length",
			ErrMalformedSignature)
	}

	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(
		strings.TrimRight(signature, "="),
	)
	sig, err := base64.RawStdEncoding.DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	return sig, nil
}

// MessageHash returns the digest that is signed by the legacy message
// signing scheme: the double SHA-256 of the varint framed magic and message.
func MessageHash(message string) ([]byte, error) {
	var b bytes.Buffer
	if err := wire.WriteVarString(&b, 0, messageMagic); err != nil {
		return nil, err
	}
	if err := wire.WriteVarString(&b, 0, message); err != nil {
		return nil, err
	}

	return chainhash.DoubleHashB(b.Bytes()), nil
}

// Verify checks that the signature over message proves control of the
// address.
//
// The address type is inferred from the address itself. A nil error with a
// false result means the signature was checked and doesn't match. An error
// means nothing could be checked: ErrCompatibility if the format can't be
// used with the address type, ErrMalformedSignature if the signature can't be
// decoded and ErrInvalidAddress if the address can't.
func Verify(message, signature, addr string, format Format,
	net *chaincfg.Params) (bool, error) {

	addrType := address.InferType(addr)
	compat := CheckCompatibility(format, addrType)
	if !compat.Compatible {
		return false, fmt.Errorf("%w: %s", ErrCompatibility, compat.Note)
	}

	sig, err := DecodeSignature(signature)
	if err != nil {
		return false, err
	}

	decoded, pkScript, err := address.PkScript(addr, net)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	log.Debugf("Verifying %d byte %v signature for %v address %v",
		len(sig), format, addrType, decoded.EncodeAddress())

	var valid bool
	switch format {
	case Electrum:
		switch {
		case len(sig) == compactSigSize:
			valid, err = verifyCompact(message, sig, decoded, false)

		case addrType == address.Legacy:
			return false, fmt.Errorf("%w: expected %d bytes, got "+
				"%d", ErrMalformedSignature, compactSigSize,
				len(sig))

		default:
			valid, err = verifyBIP322(message, sig, decoded, pkScript)
		}

	case BIP137:
		if len(sig) != compactSigSize {
			return false, fmt.Errorf("%w: expected %d bytes, got %d",
				ErrMalformedSignature, compactSigSize, len(sig))
		}
		valid, err = verifyCompact(message, sig, decoded, true)

	case BIP322:
		// Many wallets still answer a BIP-0322 request with a compact
		// signature for single key addresses. A taproot witness can
		// never be that size.
		if len(sig) == compactSigSize && addrType != address.Taproot {
			valid, err = verifyCompact(message, sig, decoded, false)
		} else {
			valid, err = verifyBIP322(message, sig, decoded, pkScript)
		}

	default:
		return false, fmt.Errorf("%w: %d", ErrUnknownFormat,
			uint8(format))
	}
	if err != nil {
		return false, err
	}

	log.Debugf("Signature for %v valid: %v", decoded.EncodeAddress(),
		valid)

	return valid, nil
}

// headerClass returns the address class a compact signature header commits
// to.
func headerClass(header byte) addrClass {
	switch {
	case header >= headerMin && header < headerP2SHP2WPKH:
		return classP2PKH

	case header >= headerP2SHP2WPKH && header < headerP2WPKH:
		return classP2SHP2WPKH

	case header >= headerP2WPKH && header <= headerMax:
		return classP2WPKH

	default:
		return classUnknown
	}
}

// verifyCompact recovers the public key from a compact signature and checks
// that it controls the address. In strict mode the header byte must also
// match the address type. In loose mode only the compression flag of the
// header is used and the address decides how the key is hashed.
func verifyCompact(message string, sig []byte, addr btcutil.Address,
	strict bool) (bool, error) {

	header := sig[0]
	if header < headerMin || header > headerMax {
		return false, fmt.Errorf("%w: invalid header byte %d",
			ErrMalformedSignature, header)
	}

	var want addrClass
	switch addr.(type) {
	case *btcutil.AddressPubKeyHash:
		want = classP2PKH

	case *btcutil.AddressScriptHash:
		want = classP2SHP2WPKH

	case *btcutil.AddressWitnessPubKeyHash:
		want = classP2WPKH

	default:
		log.Debugf("Address %v can't be proven with a compact "+
			"signature", addr.EncodeAddress())

		return false, nil
	}

	if strict && headerClass(header) != want {
		log.Debugf("Header byte %d doesn't match address %v", header,
			addr.EncodeAddress())

		return false, nil
	}

	digest, err := MessageHash(message)
	if err != nil {
		return false, err
	}

	// The btcec recovery only knows the P2PKH header range.
	recID := (header - headerMin) & 3
	normalized := make([]byte, compactSigSize)
	copy(normalized, sig)
	normalized[0] = headerMin + recID
	if header >= headerP2PKHCompressed {
		normalized[0] += 4
	}

	pubKey, wasCompressed, err := ecdsa.RecoverCompact(normalized, digest)
	if err != nil {
		return false, fmt.Errorf("%w: unable to recover public key: %v",
			ErrMalformedSignature, err)
	}

	return keyHashMatches(pubKey, wasCompressed, addr)
}

// keyHashMatches checks whether the address pays to the given key.
func keyHashMatches(pubKey *btcec.PublicKey, compressed bool,
	addr btcutil.Address) (bool, error) {

	switch a := addr.(type) {
	case *btcutil.AddressPubKeyHash:
		serialized := pubKey.SerializeUncompressed()
		if compressed {
			serialized = pubKey.SerializeCompressed()
		}

		return bytes.Equal(btcutil.Hash160(serialized), a.Hash160()[:]),
			nil

	case *btcutil.AddressScriptHash:
		if !compressed {
			return false, nil
		}
		redeemScript, err := address.WrappedRedeemScript(
			pubKey.SerializeCompressed(),
		)
		if err != nil {
			return false, err
		}

		return bytes.Equal(
			btcutil.Hash160(redeemScript), a.Hash160()[:],
		), nil

	case *btcutil.AddressWitnessPubKeyHash:
		if !compressed {
			return false, nil
		}

		return bytes.Equal(
			btcutil.Hash160(pubKey.SerializeCompressed()),
			a.WitnessProgram(),
		), nil

	default:
		return false, nil
	}
}

// verifyBIP322 checks a BIP-0322 simple or full signature by running the
// script engine on the to_sign transaction.
func verifyBIP322(message string, sig []byte, addr btcutil.Address,
	pkScript []byte) (bool, error) {

	_, packet, err := bip322.Build([]byte(message), pkScript)
	if err != nil {
		return false, err
	}

	var (
		sigScript []byte
		witness   wire.TxWitness
	)

	witness, err = bip322.ParseWitness(sig)
	switch {
	// A simple signature. For a segwit-wrapped address the script sig
	// isn't part of it, so it is rebuilt from the witness public key.
	case err == nil:
		_, isP2SH := addr.(*btcutil.AddressScriptHash)
		if isP2SH && len(witness) == 2 &&
			len(witness[1]) == btcec.PubKeyBytesLenCompressed {

			sigScript, err = wrappedSigScript(witness[1])
			if err != nil {
				return false, err
			}
		}

	// Otherwise it must be a full signature.
	default:
		tx, txErr := bip322.ParseTx(sig)
		if txErr != nil {
			return false, fmt.Errorf("%w: neither a witness stack "+
				"(%v) nor a transaction (%v)",
				ErrMalformedSignature, err, txErr)
		}

		if err := bip322.CheckToSign(tx, packet); err != nil {
			log.Debugf("Full signature rejected: %v", err)

			return false, nil
		}

		sigScript = tx.TxIn[0].SignatureScript
		witness = tx.TxIn[0].Witness
	}

	if err := bip322.Execute(packet, sigScript, witness); err != nil {
		log.Debugf("Script validation for %v failed: %v",
			addr.EncodeAddress(), err)

		return false, nil
	}

	return true, nil
}

// wrappedSigScript returns the script sig spending a segwit-wrapped output
// of the given compressed key.
func wrappedSigScript(compressedPubKey []byte) ([]byte, error) {
	redeemScript, err := address.WrappedRedeemScript(compressedPubKey)
	if err != nil {
		return nil, err
	}

	return txscript.NewScriptBuilder().AddData(redeemScript).Script()
}
