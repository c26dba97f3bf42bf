package id

import (
	"strings"
	"testing"
)

func TestNewIDFormat(t *testing.T) {
	t.Parallel()

	id, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	if len(id) != 36 {
		t.Fatalf("expected 36-character id, got %d", len(id))
	}
	if id != strings.ToLower(id) {
		t.Fatal("expected lowercase id")
	}
	if !ValidID(id) {
		t.Fatalf("expected generated id %q to validate", id)
	}
}

func TestValidIDRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	for _, value := range []string{
		"",
		"not-a-uuid",
		"A1B2C3D4-0000-0000-0000-000000000000",
		"a1b2c3d4000000000000000000000000",
		"a1b2c3d4-0000-0000-0000-00000000000",
	} {
		if ValidID(value) {
			t.Fatalf("expected %q to be rejected", value)
		}
	}
}

func TestNewInviteTokenFormat(t *testing.T) {
	t.Parallel()

	token, err := NewInviteToken()
	if err != nil {
		t.Fatalf("new invite token: %v", err)
	}
	if len(token) != 16 {
		t.Fatalf("expected 16-character token, got %d", len(token))
	}
	if !ValidInviteToken(token) {
		t.Fatalf("expected generated token %q to validate", token)
	}
}

func TestNewInviteTokenIsNotConstant(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		token, err := NewInviteToken()
		if err != nil {
			t.Fatalf("new invite token: %v", err)
		}
		if seen[token] {
			t.Fatalf("token %q repeated", token)
		}
		seen[token] = true
	}
}

func TestValidInviteTokenRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	for _, value := range []string{
		"",
		"short",
		"ABCDEF0123456789",
		"g123456789abcdef",
		"0123456789abcdef0",
	} {
		if ValidInviteToken(value) {
			t.Fatalf("expected %q to be rejected", value)
		}
	}
}
