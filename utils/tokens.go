package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/google/uuid"
)

const shortcodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// ShortcodeLength is the length of public list/campaign shortcodes
const ShortcodeLength = 8

// GenerateShortcode returns a random lowercase alphanumeric shortcode
func GenerateShortcode() string {
	buf := make([]byte, ShortcodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a uuid slice
		return uuid.New().String()[:ShortcodeLength]
	}
	for i, b := range buf {
		buf[i] = shortcodeAlphabet[int(b)%len(shortcodeAlphabet)]
	}
	return string(buf)
}

// GenerateToken returns an opaque token for verification/unsubscribe links.
// Hashing a uuid keeps the token length fixed at 64 hex characters.
func GenerateToken() string {
	sum := sha256.Sum256([]byte(uuid.New().String()))
	return hex.EncodeToString(sum[:])
}

// GenerateMessageToken derives a short URL-safe token bound to a message id
func GenerateMessageToken(messageID string) string {
	sum := sha256.Sum256([]byte(uuid.New().String() + messageID))
	return base64.URLEncoding.EncodeToString(sum[:])[:20]
}
