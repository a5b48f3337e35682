package verifyrpc

import "github.com/aakselrod/multisigcheck/descriptor"

type ExtractEntriesRequest struct {
	// Text is the wallet descriptor or config export to scan.
	Text string `json:"text"`
}

type ExtractEntriesResponse struct {
	Entries []descriptor.Entry `json:"entries"`
}

type DeriveAddressRequest struct {
	XPub string `json:"xpub"`

	// RelativePath is the non-hardened path below the xpub, e.g. "0/5".
	RelativePath string `json:"relative_path"`

	// AddressType is one of legacy, segwit, segwit-wrapped or taproot.
	AddressType string `json:"address_type"`
}

type DeriveAddressResponse struct {
	Address string `json:"address"`

	// PublicKey is the hex encoded compressed public key.
	PublicKey string `json:"public_key"`

	Path []uint32 `json:"path"`
}

type VerifySignatureRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Address   string `json:"address"`

	// Format is one of electrum, bip137 or bip322.
	Format string `json:"format"`
}

type VerifySignatureResponse struct {
	Valid bool `json:"valid"`
}

type CheckCompatibilityRequest struct {
	Format      string `json:"format"`
	AddressType string `json:"address_type"`
}

type CheckCompatibilityResponse struct {
	Compatible bool   `json:"compatible"`
	Note       string `json:"note,omitempty"`
}

type ChallengeRequest struct {
	// Entry is the key the collaborator must sign with, as returned by
	// ExtractEntries.
	Entry        descriptor.Entry `json:"entry"`
	RelativePath string           `json:"relative_path"`
	Message      string           `json:"message"`
}

type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}
