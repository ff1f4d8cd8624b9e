package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	usernamePrefix = "dr."
	publicIDPrefix = "DR"
	publicIDLength = 6
	fallbackSlug   = "medecin"
)

var honorifics = map[string]struct{}{
	"dr":      {},
	"docteur": {},
	"doctor":  {},
	"pr":      {},
	"prof":    {},
	"medecin": {},
}

// Slug lowercases name, strips accents and leading honorifics, and collapses
// every run of non-alphanumeric characters into a single dot.
func Slug(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	for len(words) > 1 {
		if _, ok := honorifics[words[0]]; !ok {
			break
		}
		words = words[1:]
	}
	return strings.Join(words, ".")
}

// BaseUsername returns the storage key derived from a display name,
// before collision handling.
func BaseUsername(name string) string {
	slug := Slug(name)
	if slug == "" {
		slug = fallbackSlug
	}
	return usernamePrefix + slug
}

// allocateUsername returns base, or base with the smallest numeric suffix
// (starting at 2) that is not taken.
func allocateUsername(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + strconv.Itoa(n)
		if !taken(candidate) {
			return candidate
		}
	}
}

// allocatePublicID derives a short ID from a content hash of the username.
// The hash is re-salted until the ID is free, so the first choice is stable
// for a given username.
func allocatePublicID(username string, taken func(string) bool) string {
	for salt := 0; ; salt++ {
		input := username
		if salt > 0 {
			input = username + "#" + strconv.Itoa(salt)
		}
		sum := sha256.Sum256([]byte(input))
		candidate := publicIDPrefix + strings.ToUpper(hex.EncodeToString(sum[:])[:publicIDLength])
		if !taken(candidate) {
			return candidate
		}
	}
}
