// Package auth verifies access tokens issued by the identity provider.
//
// Token minting lives with the provider; this package only validates EdDSA
// signed bearer tokens and extracts the caller identity.
package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/renteasy/renteasy/internal/platform/errors"
)

// Identity is the authenticated caller extracted from an access token.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

// verifierEnv holds raw env values before post-parse validation.
type verifierEnv struct {
	Issuer    string `env:"RENTEASY_AUTH_ISSUER"`
	Audience  string `env:"RENTEASY_AUTH_AUDIENCE"`
	PublicKey string `env:"RENTEASY_AUTH_PUBLIC_KEY"`
}

// Verifier validates access tokens against a pinned issuer, audience, and
// Ed25519 public key.
type Verifier struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// accessClaims is the internal claims type used for JWT parsing.
type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NewVerifierFromEnv reads access token verification configuration.
func NewVerifierFromEnv(now func() time.Time) (Verifier, error) {
	var raw verifierEnv
	if err := env.Parse(&raw); err != nil {
		return Verifier{}, fmt.Errorf("parse auth env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return Verifier{}, fmt.Errorf("RENTEASY_AUTH_ISSUER is required")
	}
	if audience == "" {
		return Verifier{}, fmt.Errorf("RENTEASY_AUTH_AUDIENCE is required")
	}
	if publicKey == "" {
		return Verifier{}, fmt.Errorf("RENTEASY_AUTH_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return Verifier{}, fmt.Errorf("decode auth public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return Verifier{}, fmt.Errorf("auth public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return Verifier{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// Verify validates a bearer token and returns the caller identity.
func (v Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, apperrors.New(apperrors.CodeUnauthenticated, "access token is required")
	}
	now := v.Now
	if now == nil {
		now = time.Now
	}
	if v.Issuer == "" || v.Audience == "" || len(v.Key) != ed25519.PublicKeySize {
		return Identity{}, errors.New("access token verifier is not configured")
	}

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return v.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Identity{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != v.Issuer {
		return Identity{}, apperrors.WithMetadata(
			apperrors.CodeAccessTokenMismatch,
			"access token issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, v.Audience) {
		return Identity{}, apperrors.WithMetadata(
			apperrors.CodeAccessTokenMismatch,
			"access token audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ExpiresAt == nil {
		return Identity{}, apperrors.New(apperrors.CodeAccessTokenInvalid, "access token exp is required")
	}

	current := now().UTC()
	if !parsed.ExpiresAt.Time.UTC().After(current) {
		return Identity{}, apperrors.New(apperrors.CodeAccessTokenExpired, "access token is expired")
	}
	if parsed.NotBefore != nil && current.Before(parsed.NotBefore.Time.UTC()) {
		return Identity{}, apperrors.New(apperrors.CodeAccessTokenInvalid, "access token not active yet")
	}

	subject := strings.TrimSpace(parsed.Subject)
	if subject == "" {
		return Identity{}, apperrors.New(apperrors.CodeAccessTokenInvalid, "access token subject is required")
	}

	return Identity{
		UserID:      subject,
		Email:       strings.TrimSpace(parsed.Email),
		DisplayName: strings.TrimSpace(parsed.Name),
	}, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeAccessTokenInvalid, "access token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeAccessTokenInvalid, "access token alg is invalid")
	}
	return apperrors.New(apperrors.CodeAccessTokenInvalid, "access token is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
