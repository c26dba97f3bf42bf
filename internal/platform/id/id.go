// Package id provides identifier and invite-token generation.
//
// Contract identifiers are canonical lowercase UUIDs (8-4-4-4-12 hyphenated
// hex). Invite tokens carry 64 bits of randomness rendered as 16 lowercase
// hex characters. Both formats are validated before any storage lookup so
// malformed input is rejected cheaply.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

const tokenBytes = 8

var (
	idPattern    = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	tokenPattern = regexp.MustCompile(`^[a-f0-9]{16}$`)
)

// NewID generates a canonical lowercase UUID string.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return value.String(), nil
}

// ValidID reports whether value is a canonical lowercase UUID.
func ValidID(value string) bool {
	return idPattern.MatchString(value)
}

// NewInviteToken generates an unguessable single-use invite token.
func NewInviteToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ValidInviteToken reports whether value matches the invite token format.
func ValidInviteToken(value string) bool {
	return tokenPattern.MatchString(value)
}
