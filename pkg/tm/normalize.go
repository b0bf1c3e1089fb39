package tm

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFC normalization and collapses runs of whitespace to
// a single space, preserving case. "<br/>" is literal text here, never a
// newline — it is never introduced, removed, or rewritten by this
// function, only carried through untouched, so a round trip through
// import/export stays byte-exact for it.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Casefold lowers a normalized string for the cascade's case/whitespace
// insensitive tier. Applied only after Normalize, never in place of it.
func Casefold(normalized string) string {
	return strings.ToLower(normalized)
}

// Hash returns the hex-encoded SHA-256 digest of a normalized source,
// used as TMEntry.SourceHash. Two imports of the same normalized source
// collide on this hash and upsert rather than duplicate.
func Hash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
