package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID generates a random unique ID
func GenerateID() string {
	return uuid.NewString()
}

// MaskSecret hides all but the first and last four characters of a token
// so it can be logged or printed.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
