// Package bip322 builds and checks the virtual transactions of the BIP-0322
// generic signed message format.
package bip322

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// maxWitnessItems is the number of stack items we accept in a simple
	// signature. The standardness limit for P2WSH inputs is 100.
	maxWitnessItems = 100

	// maxWitnessItemSize is the maximum size of a single witness item.
	maxWitnessItemSize = txscript.MaxScriptSize
)

var (
	// Tag is the BIP-0340 tag used to hash the message.
	Tag = []byte("BIP0322-signed-message")

	// ErrMalformedWitness is returned when a simple signature isn't a
	// serialized witness stack.
	ErrMalformedWitness = errors.New("malformed witness stack")

	// ErrMalformedTx is returned when a full signature isn't a serialized
	// transaction.
	ErrMalformedTx = errors.New("malformed to_sign transaction")

	// ErrUnexpectedTx is returned when a full signature is a transaction
	// that doesn't have the shape of the to_sign transaction for the
	// message and address.
	ErrUnexpectedTx = errors.New("transaction is not the expected " +
		"to_sign transaction")
)

// MessageHash returns the tagged hash of the message that is committed to in
// the to_spend transaction.
func MessageHash(message []byte) chainhash.Hash {
	return *chainhash.TaggedHash(Tag, message)
}

// BuildToSpend returns the virtual to_spend transaction whose only output
// pays to the given script and commits to the message.
func BuildToSpend(message []byte, pkScript []byte) (*wire.MsgTx, error) {
	msgHash := MessageHash(message)
	sigScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(msgHash[:]).
		Script()
	if err != nil {
		return nil, err
	}

	toSpend := wire.NewMsgTx(0)

	prevOut := wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex)
	txIn := wire.NewTxIn(prevOut, sigScript, nil)
	txIn.Sequence = 0
	toSpend.AddTxIn(txIn)

	toSpend.AddTxOut(wire.NewTxOut(0, pkScript))

	return toSpend, nil
}

// BuildToSign returns the unsigned to_sign transaction spending the to_spend
// transaction as a PSBT packet. The UTXO information of the single input is
// populated so the packet can be signed or verified without any other state.
func BuildToSign(toSpend *wire.MsgTx) (*psbt.Packet, error) {
	toSpendHash := toSpend.TxHash()

	toSign := wire.NewMsgTx(0)

	txIn := wire.NewTxIn(wire.NewOutPoint(&toSpendHash, 0), nil, nil)
	txIn.Sequence = 0
	toSign.AddTxIn(txIn)

	toSign.AddTxOut(wire.NewTxOut(0, []byte{txscript.OP_RETURN}))

	packet, err := psbt.NewFromUnsignedTx(toSign)
	if err != nil {
		return nil, err
	}

	utxo := toSpend.TxOut[0]
	packet.Inputs[0].NonWitnessUtxo = toSpend
	if txscript.IsWitnessProgram(utxo.PkScript) {
		packet.Inputs[0].WitnessUtxo = utxo
	}

	return packet, nil
}

// Build returns both virtual transactions for a message and output script,
// the to_sign transaction as a PSBT packet.
func Build(message []byte, pkScript []byte) (*wire.MsgTx, *psbt.Packet,
	error) {

	toSpend, err := BuildToSpend(message, pkScript)
	if err != nil {
		return nil, nil, err
	}

	toSign, err := BuildToSign(toSpend)
	if err != nil {
		return nil, nil, err
	}

	return toSpend, toSign, nil
}

// PrevOutputFetcher returns a txscript.PrevOutFetcher built from the UTXO
// information in a PSBT packet.
func PrevOutputFetcher(packet *psbt.Packet) *txscript.MultiPrevOutFetcher {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for idx, txIn := range packet.UnsignedTx.TxIn {
		in := packet.Inputs[idx]

		// Skip any input that has no UTXO.
		if in.WitnessUtxo == nil && in.NonWitnessUtxo == nil {
			continue
		}

		if in.NonWitnessUtxo != nil {
			prevIndex := txIn.PreviousOutPoint.Index
			fetcher.AddPrevOut(
				txIn.PreviousOutPoint,
				in.NonWitnessUtxo.TxOut[prevIndex],
			)

			continue
		}

		fetcher.AddPrevOut(txIn.PreviousOutPoint, in.WitnessUtxo)
	}

	return fetcher
}

// SerializeWitness encodes a witness stack in the simple signature format.
func SerializeWitness(witness wire.TxWitness) ([]byte, error) {
	var b bytes.Buffer
	if err := wire.WriteVarInt(&b, 0, uint64(len(witness))); err != nil {
		return nil, err
	}
	for _, item := range witness {
		if err := wire.WriteVarBytes(&b, 0, item); err != nil {
			return nil, err
		}
	}

	return b.Bytes(), nil
}

// ParseWitness decodes a simple signature into a witness stack. All bytes
// must be consumed.
func ParseWitness(sig []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(sig)

	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWitness, err)
	}
	if count > maxWitnessItems {
		return nil, fmt.Errorf("%w: %d items", ErrMalformedWitness,
			count)
	}

	witness := make(wire.TxWitness, count)
	for i := range witness {
		witness[i], err = wire.ReadVarBytes(
			r, 0, maxWitnessItemSize, "witness item",
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedWitness,
				err)
		}
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes",
			ErrMalformedWitness, r.Len())
	}

	return witness, nil
}

// ParseTx decodes a full signature into a transaction. All bytes must be
// consumed.
func ParseTx(sig []byte) (*wire.MsgTx, error) {
	r := bytes.NewReader(sig)

	tx := &wire.MsgTx{}
	if err := tx.Deserialize(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedTx,
			r.Len())
	}

	return tx, nil
}

// CheckToSign makes sure a transaction from a full signature is the to_sign
// transaction of the packet, apart from its input scripts.
func CheckToSign(tx *wire.MsgTx, packet *psbt.Packet) error {
	want := packet.UnsignedTx

	switch {
	case tx.Version != want.Version:
		return fmt.Errorf("%w: version %d", ErrUnexpectedTx, tx.Version)

	case tx.LockTime != want.LockTime:
		return fmt.Errorf("%w: lock time %d", ErrUnexpectedTx,
			tx.LockTime)

	case len(tx.TxIn) != 1:
		return fmt.Errorf("%w: %d inputs", ErrUnexpectedTx,
			len(tx.TxIn))

	case tx.TxIn[0].PreviousOutPoint != want.TxIn[0].PreviousOutPoint:
		return fmt.Errorf("%w: spends %v", ErrUnexpectedTx,
			tx.TxIn[0].PreviousOutPoint)

	case tx.TxIn[0].Sequence != want.TxIn[0].Sequence:
		return fmt.Errorf("%w: sequence %d", ErrUnexpectedTx,
			tx.TxIn[0].Sequence)

	case len(tx.TxOut) != 1:
		return fmt.Errorf("%w: %d outputs", ErrUnexpectedTx,
			len(tx.TxOut))

	case tx.TxOut[0].Value != 0 ||
		!bytes.Equal(tx.TxOut[0].PkScript, want.TxOut[0].PkScript):

		return fmt.Errorf("%w: unexpected output", ErrUnexpectedTx)
	}

	return nil
}

// Execute runs the script engine on the first input of the to_sign packet
// with the given input scripts. A nil error means the signature is valid.
func Execute(packet *psbt.Packet, sigScript []byte,
	witness wire.TxWitness) error {

	fetcher := PrevOutputFetcher(packet)

	tx := packet.UnsignedTx.Copy()
	tx.TxIn[0].SignatureScript = sigScript
	tx.TxIn[0].Witness = witness

	prevOut := fetcher.FetchPrevOutput(tx.TxIn[0].PreviousOutPoint)
	if prevOut == nil {
		return errors.New("packet is missing the to_spend output")
	}

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	vm, err := txscript.NewEngine(
		prevOut.PkScript, tx, 0, txscript.StandardVerifyFlags, nil,
		sigHashes, prevOut.Value, fetcher,
	)
	if err != nil {
		return err
	}

	return vm.Execute()
}
