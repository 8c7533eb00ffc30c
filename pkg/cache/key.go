package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Normalize lower-cases the question and keeps only its word tokens,
// joined by single spaces. Punctuation and spacing never affect the key.
func Normalize(question string) string {
	return strings.Join(wordRe.FindAllString(strings.ToLower(question), -1), " ")
}

// BuildKey binds a normalized question to a corpus fingerprint.
func BuildKey(question, fingerprint string) string {
	sum := sha256.Sum256([]byte(Normalize(question) + "|" + fingerprint))
	return hex.EncodeToString(sum[:])
}
