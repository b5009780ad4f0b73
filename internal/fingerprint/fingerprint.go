// Package fingerprint computes stable content hashes for document units.
//
// Two texts that differ only in formatting (whitespace runs, line breaks,
// Unicode compatibility forms) hash identically; any substantive token
// change produces a different hash.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Fingerprint returns the hex SHA-256 of the normalized token form of
// text. Pure function: no side effects, deterministic across runs.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Normalize produces the canonical token form hashed by Fingerprint:
// NFKC-normalized, whitespace collapsed to single spaces, leading and
// trailing whitespace dropped. Case is preserved so that casing edits
// count as substantive changes.
func Normalize(text string) string {
	text = norm.NFKC.String(text)

	var b strings.Builder
	b.Grow(len(text))
	inSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
