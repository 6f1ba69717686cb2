// Package invite implements the invite-code lifecycle: the canonical
// XXX-XXX-XXX text format, code generation, extraction from join URLs,
// and the single-slot pending-invite staging that survives an
// authentication detour.
package invite

import (
	"errors"
	"math/rand/v2"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidFormat indicates text that does not normalize to a full
// 9-character code. Recoverable: shown inline at the input.
var ErrInvalidFormat = errors.New("invite code must be 9 letters or digits")

const (
	// codeLen is the number of significant characters in a code.
	codeLen = 9

	// joinMarker is the URL path segment that precedes an invite code
	// in shared join links (e.g. https://host/join/ABC-123-XYZ).
	joinMarker = "join"

	// generateAlphabet is the character set for newly generated codes.
	// O, 0, I and 1 are excluded to avoid confusion when codes are read
	// aloud or retyped. Validation still accepts the full [A-Z0-9] class
	// so codes from older generators keep working.
	generateAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{3}-[A-Z0-9]{3}-[A-Z0-9]{3}$`)

// Normalize canonicalizes invite-code text: uppercase, strip everything
// outside [A-Z0-9], regroup the surviving characters 3-3-3 with dashes.
// It is applied incrementally as the user types, so partial input yields
// a partially grouped prefix ("ab1 2" -> "AB1-2"). Characters beyond the
// ninth are dropped. Normalize is idempotent.
func Normalize(text string) string {
	significant := make([]byte, 0, codeLen)
	for i := 0; i < len(text) && len(significant) < codeLen; i++ {
		c := text[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			significant = append(significant, c)
		}
	}

	var b strings.Builder
	b.Grow(codeLen + 2)
	for i, c := range significant {
		if i == 3 || i == 6 {
			b.WriteByte('-')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// IsValidFormat reports whether the text normalizes to a complete code.
func IsValidFormat(text string) bool {
	return codePattern.MatchString(Normalize(text))
}

// Validate normalizes the text and returns the canonical code, or
// ErrInvalidFormat if fewer than nine significant characters survive.
func Validate(text string) (string, error) {
	code := Normalize(text)
	if !codePattern.MatchString(code) {
		return "", ErrInvalidFormat
	}
	return code, nil
}

// FromURL extracts an invite code from a shared join link. It looks for a
// path segment literally equal to "join" and validates the segment after
// it. Total: malformed URLs, a missing marker, or an invalid trailing
// segment all return ok=false, never an error.
func FromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, segment := range segments {
		if segment != joinMarker || i+1 >= len(segments) {
			continue
		}
		if code, err := Validate(segments[i+1]); err == nil {
			return code, true
		}
		return "", false
	}
	return "", false
}

// Generate returns a random code in canonical form using the
// confusion-free alphabet. Uniqueness is the caller's concern (retry
// against the room store on collision).
func Generate() string {
	var b strings.Builder
	b.Grow(codeLen + 2)
	for i := 0; i < codeLen; i++ {
		if i == 3 || i == 6 {
			b.WriteByte('-')
		}
		b.WriteByte(generateAlphabet[rand.IntN(len(generateAlphabet))])
	}
	return b.String()
}
