package descriptor

import (
	"fmt"
	"regexp"
	"strings"
)

// Unknown is used for a base path or fingerprint that couldn't be found in
// the source text.
const Unknown = "unknown"

var (
	// xpubRE matches any word containing "xpub". It is permissive on
	// purpose, invalid keys fail later when they are decoded.
	xpubRE = regexp.MustCompile(`\b\w*xpub\w*\b`)

	// pathRE matches a slash separated run of indexes that ends with a
	// hardened marker, e.g. /48h/0h/0h/2h or /84'/0'/0'.
	pathRE = regexp.MustCompile(`/[\dh'/]+[h']`)

	// fingerprintRE matches a standalone run of 8 hex characters.
	fingerprintRE = regexp.MustCompile(`\b[A-Fa-f0-9]{8}\b`)
)

// Entry is one extended public key found in a wallet descriptor or config
// export together with the base path and fingerprint attributed to it.
type Entry struct {
	// XPub is the extended public key token exactly as found.
	XPub string `json:"xpub"`

	// BasePath is the derivation path from the master key to XPub, e.g.
	// /48'/0'/0'/2', with hardened markers normalised to '. It is Unknown
	// if no path precedes the key.
	BasePath string `json:"base_path"`

	// Fingerprint is the master key fingerprint as 8 hex characters or
	// Unknown.
	Fingerprint string `json:"fingerprint"`
}

// HasBasePath returns true if a base path was found for the entry.
func (e Entry) HasBasePath() bool {
	return e.BasePath != Unknown
}

// FullPath renders the full derivation path of a child of the entry's key,
// m<base path>/<relative path>. If the base path is unknown, the rendered
// path starts with "unknown" instead of "m".
func (e Entry) FullPath(relative []uint32) string {
	var b strings.Builder
	if e.HasBasePath() {
		b.WriteString("m")
		b.WriteString(e.BasePath)
	} else {
		b.WriteString(Unknown)
	}

	for _, index := range relative {
		fmt.Fprintf(&b, "/%d", index)
	}

	return b.String()
}

// Extract finds all extended public keys in the text, in order of
// appearance.
//
// The base path of each key is the last path found in the text between the
// previous key (or the start of the text) and the key itself. Fingerprints
// are collected independently and paired by position: the i-th key gets the
// i-th fingerprint in the text. Descriptors that list fingerprints in a
// different order than their keys will be mis-paired.
//
// Text without any key yields an empty slice.
func Extract(text string) []Entry {
	xpubLocs := xpubRE.FindAllStringIndex(text, -1)
	fingerprints := fingerprintRE.FindAllString(text, -1)

	entries := make([]Entry, 0, len(xpubLocs))

	segmentStart := 0
	for i, loc := range xpubLocs {
		entry := Entry{
			XPub:        text[loc[0]:loc[1]],
			BasePath:    lastPath(text[segmentStart:loc[0]]),
			Fingerprint: Unknown,
		}
		if i < len(fingerprints) {
			entry.Fingerprint = fingerprints[i]
		}

		entries = append(entries, entry)
		segmentStart = loc[1]
	}

	log.Debugf("Extracted %d keys and %d fingerprints from %d bytes of "+
		"text", len(entries), len(fingerprints), len(text))

	if len(fingerprints) != len(entries) && len(entries) > 0 {
		log.Warnf("Found %d fingerprints for %d keys, pairing them by "+
			"position", len(fingerprints), len(entries))
	}

	return entries
}

// lastPath returns the last path in the text with hardened markers written
// as ', or Unknown.
func lastPath(text string) string {
	matches := pathRE.FindAllString(text, -1)
	if len(matches) == 0 {
		return Unknown
	}

	return strings.ReplaceAll(matches[len(matches)-1], "h", "'")
}

// Challenge returns the text handed to a collaborator: the message to sign
// followed by the full path of the key it must be signed with.
func Challenge(entry Entry, relative []uint32, message string) string {
	return message + "\n" + entry.FullPath(relative)
}
