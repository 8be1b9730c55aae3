package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateShortcodeFormat(t *testing.T) {
	pattern := regexp.MustCompile("^[a-z0-9]{8}$")

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateShortcode()
		assert.True(t, pattern.MatchString(code), "unexpected shortcode %q", code)
		seen[code] = true
	}

	// 100 draws from a 36^8 space should never collide
	assert.Len(t, seen, 100)
}

func TestGenerateTokenFormat(t *testing.T) {
	pattern := regexp.MustCompile("^[0-9a-f]{64}$")

	a := GenerateToken()
	b := GenerateToken()
	assert.True(t, pattern.MatchString(a))
	assert.True(t, pattern.MatchString(b))
	assert.NotEqual(t, a, b)
}

func TestGenerateMessageTokenLength(t *testing.T) {
	token := GenerateMessageToken("msg-1")
	assert.Len(t, token, 20)
}
