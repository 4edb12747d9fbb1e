package app

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// PhoneNormalizer canonicalizes raw phone numbers before hashing. The real
// normalization rules live in the contact module; this boundary lets the
// relay share them without importing that code.
type PhoneNormalizer interface {
	Normalize(raw string) string
}

// DigitsNormalizer is the default normalizer: it strips everything but
// digits. Good enough for jid-derived numbers, which are already E.164
// without the plus.
type DigitsNormalizer struct{}

func (DigitsNormalizer) Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneHash computes the lookup hash for a normalized phone number. The
// contact module maintains its phone index with the same function.
func PhoneHash(normalized string) string {
	sum := sha3.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// phoneFromJID extracts the phone number from an individual jid like
// "15551234567@s.whatsapp.net". Group jids have no phone number.
func phoneFromJID(jid string) string {
	user, _, found := strings.Cut(jid, "@")
	if !found {
		user = jid
	}
	if i := strings.IndexByte(user, ':'); i >= 0 {
		user = user[:i]
	}
	if user == "" {
		return ""
	}
	for _, r := range user {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return user
}

// isFormattedPhone reports whether a display name is just a phone number in
// some formatting, i.e. a low-quality name that a provider push name may
// overwrite.
func isFormattedPhone(name string) bool {
	if name == "" {
		return false
	}
	digits := 0
	for _, r := range name {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits > 0
}
