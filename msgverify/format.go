package msgverify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aakselrod/multisigcheck/address"
)

// Format is a signed message convention.
type Format uint8

const (
	// Electrum is the legacy message signing scheme as produced by
	// Electrum and most hardware wallets: a 65 byte recoverable ECDSA
	// signature.
	Electrum Format = iota

	// BIP137 is the same compact signature, but the header byte encodes
	// the address type and must match the address it is checked against.
	BIP137

	// BIP322 is the generic signed message format that proves control by
	// satisfying the output script of the address.
	BIP322
)

var (
	// ErrUnknownFormat is returned when a signature format name can't be
	// parsed.
	ErrUnknownFormat = errors.New("unknown signature format")

	formatNames = map[Format]string{
		Electrum: "electrum",
		BIP137:   "bip137",
		BIP322:   "bip322",
	}
)

// String returns the canonical name of the format.
func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}

	return fmt.Sprintf("Format(%d)", uint8(f))
}

// ParseFormat returns the format for its canonical name. Matching is case
// insensitive.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	if _, ok := formatNames[f]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, uint8(f))
	}

	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed

	return nil
}

// Compatibility is the result of checking a format against an address type
// before any signature is looked at.
type Compatibility struct {
	Compatible bool `json:"compatible"`

	// Note explains why the combination can't work. It is empty for
	// compatible combinations.
	Note string `json:"note,omitempty"`
}

// CheckCompatibility reports whether signatures in the given format can be
// verified against addresses of the given type. Only BIP-0322 can prove
// control of a taproot address, every other combination is compatible.
func CheckCompatibility(format Format, addrType address.Type) Compatibility {
	if addrType == address.Taproot && format != BIP322 {
		return Compatibility{
			Compatible: false,
			Note: fmt.Sprintf("%v signatures can't be verified "+
				"against a taproot address, ask for a bip322 "+
				"signature instead", format),
		}
	}

	return Compatibility{Compatible: true}
}
