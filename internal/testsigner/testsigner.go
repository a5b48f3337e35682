// Package testsigner plays the collaborator side in tests: it holds an HD
// seed, hands out account xpubs and signs challenge messages in every format
// the verifier understands. It must never be used outside of tests.
package testsigner

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/aakselrod/multisigcheck/address"
	"github.com/aakselrod/multisigcheck/bip322"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Compact signature header bases as defined in BIP-0137. The recovery ID is
// added to the base.
const (
	HeaderP2PKHUncompressed byte = 27
	HeaderP2PKH             byte = 31
	HeaderP2SHP2WPKH        byte = 35
	HeaderP2WPKH            byte = 39
)

// messageMagic is the prefix of the legacy signed message digest.
const messageMagic = "Bitcoin Signed Message:\n"

// Signer is an HD key ring backed by an in-memory seed.
type Signer struct {
	root *hdkeychain.ExtendedKey
	net  *chaincfg.Params
}

// New returns a signer for the given seed.
func New(seed []byte, net *chaincfg.Params) (*Signer, error) {
	root, err := hdkeychain.NewMaster(seed, net)
	if err != nil {
		return nil, err
	}

	return &Signer{
		root: root,
		net:  net,
	}, nil
}

// Fingerprint returns the master key fingerprint as 8 hex characters.
func (s *Signer) Fingerprint() (string, error) {
	pubKey, err := s.root.ECPubKey()
	if err != nil {
		return "", err
	}

	hash := btcutil.Hash160(pubKey.SerializeCompressed())

	return fmt.Sprintf("%x", hash[:4]), nil
}

// AccountXPub returns the extended public key at the given path, which is
// usually fully hardened, e.g. m/48'/0'/0'/2'.
func (s *Signer) AccountXPub(path ...uint32) (string, error) {
	key, err := s.derive(path)
	if err != nil {
		return "", err
	}

	pub, err := key.Neuter()
	if err != nil {
		return "", err
	}

	return pub.String(), nil
}

// DerivePrivKey returns the private key at the given full path.
func (s *Signer) DerivePrivKey(path ...uint32) (*btcec.PrivateKey, error) {
	key, err := s.derive(path)
	if err != nil {
		return nil, err
	}

	return key.ECPrivKey()
}

func (s *Signer) derive(path []uint32) (*hdkeychain.ExtendedKey, error) {
	key := s.root
	for _, index := range path {
		var err error
		key, err = key.Derive(index)
		if err != nil {
			return nil, err
		}
	}

	return key, nil
}

// Hardened returns the hardened form of an index.
func Hardened(index uint32) uint32 {
	return index + hdkeychain.HardenedKeyStart
}

// SignCompact signs the message with the legacy message signing scheme and
// returns the base64 signature with a header byte from the given base.
func SignCompact(privKey *btcec.PrivateKey, message string,
	headerBase byte) (string, error) {

	var b bytes.Buffer
	if err := wire.WriteVarString(&b, 0, messageMagic); err != nil {
		return "", err
	}
	if err := wire.WriteVarString(&b, 0, message); err != nil {
		return "", err
	}
	digest := chainhash.DoubleHashB(b.Bytes())

	compressed := headerBase != HeaderP2PKHUncompressed
	sig, err := ecdsa.SignCompact(privKey, digest, compressed)
	if err != nil {
		return "", err
	}

	// SignCompact uses 27 or 31 as base, move the recovery ID over to the
	// requested base.
	recID := (sig[0] - 27) & 3
	sig[0] = headerBase + recID

	return base64.StdEncoding.EncodeToString(sig), nil
}

// SignBIP322 signs the message for the address with the BIP-0322 simple
// format, or the full format if full is set.
func SignBIP322(privKey *btcec.PrivateKey, message, addr string,
	net *chaincfg.Params, full bool) (string, error) {

	_, pkScript, err := address.PkScript(addr, net)
	if err != nil {
		return "", err
	}

	_, packet, err := bip322.Build([]byte(message), pkScript)
	if err != nil {
		return "", err
	}

	if err := SignPsbt(packet, privKey); err != nil {
		return "", err
	}

	in := packet.Inputs[0]
	if full {
		tx := packet.UnsignedTx.Copy()
		tx.TxIn[0].SignatureScript = in.FinalScriptSig
		if len(in.FinalScriptWitness) > 0 {
			tx.TxIn[0].Witness, err = bip322.ParseWitness(
				in.FinalScriptWitness,
			)
			if err != nil {
				return "", err
			}
		}

		var b bytes.Buffer
		if err := tx.Serialize(&b); err != nil {
			return "", err
		}

		return base64.StdEncoding.EncodeToString(b.Bytes()), nil
	}

	if len(in.FinalScriptWitness) == 0 {
		return "", fmt.Errorf("address %v needs the full format", addr)
	}

	return base64.StdEncoding.EncodeToString(in.FinalScriptWitness), nil
}

// SignPsbt signs and finalizes the first input of a to_sign packet with the
// given key. We have no state information, so the signing method is picked
// from the UTXO script alone.
func SignPsbt(packet *psbt.Packet, privKey *btcec.PrivateKey) error {
	tx := packet.UnsignedTx
	in := &packet.Inputs[0]

	prevOutputFetcher := bip322.PrevOutputFetcher(packet)
	prevOut := prevOutputFetcher.FetchPrevOutput(
		tx.TxIn[0].PreviousOutPoint,
	)
	if prevOut == nil {
		return fmt.Errorf("no UTXO information for input 0")
	}
	sigHashes := txscript.NewTxSigHashes(tx, prevOutputFetcher)

	pubKeyBytes := privKey.PubKey().SerializeCompressed()

	script, err := txscript.ParsePkScript(prevOut.PkScript)
	if err != nil {
		return fmt.Errorf("error detecting signing method, "+
			"couldn't parse pkScript: %v", err)
	}

	switch script.Class() {
	// For p2pkh, which can only be proven with the full format.
	case txscript.PubKeyHashTy:
		sig, err := txscript.RawTxInSignature(
			tx, 0, prevOut.PkScript, txscript.SigHashAll, privKey,
		)
		if err != nil {
			return fmt.Errorf("error signing input 0: %v", err)
		}
		in.FinalScriptSig, err = txscript.NewScriptBuilder().
			AddData(sig).AddData(pubKeyBytes).Script()

		return err

	// For p2wkh.
	case txscript.WitnessV0PubKeyHashTy:
		return signSegWitV0(in, tx, sigHashes, prevOut, prevOut.PkScript,
			privKey)

	// For np2wkh, the witness program is the redeem script.
	case txscript.ScriptHashTy:
		redeemScript, err := address.WrappedRedeemScript(pubKeyBytes)
		if err != nil {
			return err
		}
		err = signSegWitV0(in, tx, sigHashes, prevOut, redeemScript,
			privKey)
		if err != nil {
			return err
		}
		in.FinalScriptSig, err = txscript.NewScriptBuilder().
			AddData(redeemScript).Script()

		return err

	// For p2tr BIP0086 key spend only.
	case txscript.WitnessV1TaprootTy:
		// The tweak is applied to the key in place, sign with a copy so
		// the caller's key stays usable.
		keyCopy, _ := btcec.PrivKeyFromBytes(privKey.Serialize())
		rawSig, err := txscript.RawTxInTaprootSignature(
			tx, sigHashes, 0, prevOut.Value, prevOut.PkScript,
			[]byte{}, txscript.SigHashDefault, keyCopy,
		)
		if err != nil {
			return fmt.Errorf("error signing taproot input 0: %v",
				err)
		}
		in.TaprootKeySpendSig = rawSig

		return finalizeWitness(in, wire.TxWitness{rawSig})

	default:
		return fmt.Errorf("unsupported script class for signing "+
			"PSBT: %v", script.Class())
	}
}

// signSegWitV0 attempts to generate a signature for a SegWit version 0 input
// and stores it in the PartialSigs and final witness fields.
func signSegWitV0(in *psbt.PInput, tx *wire.MsgTx,
	sigHashes *txscript.TxSigHashes, prevOut *wire.TxOut,
	subScript []byte, privKey *btcec.PrivateKey) error {

	pubKeyBytes := privKey.PubKey().SerializeCompressed()

	sig, err := txscript.RawTxInWitnessSignature(
		tx, sigHashes, 0, prevOut.Value, subScript,
		txscript.SigHashAll, privKey,
	)
	if err != nil {
		return fmt.Errorf("error signing input 0: %v", err)
	}
	in.PartialSigs = append(in.PartialSigs, &psbt.PartialSig{
		PubKey:    pubKeyBytes,
		Signature: sig,
	})

	return finalizeWitness(in, wire.TxWitness{sig, pubKeyBytes})
}

func finalizeWitness(in *psbt.PInput, witness wire.TxWitness) error {
	serialized, err := bip322.SerializeWitness(witness)
	if err != nil {
		return err
	}
	in.FinalScriptWitness = serialized

	return nil
}
