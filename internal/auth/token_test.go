// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mavrk/apihub/internal/domain"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user := domain.User{ID: uuid.New(), Role: domain.RoleAdmin}
	signed, err := tokens.Issue(user)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	userID, role, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if userID != user.ID {
		t.Fatalf("expected user id %s got %s", user.ID, userID)
	}
	if role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", role)
	}
}

func TestTokensRejectsExpired(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issuedAt }

	signed, err := tokens.Issue(domain.User{ID: uuid.New(), Role: domain.RoleMember})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	tokens.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if _, _, err := tokens.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokensRejectsWrongSecret(t *testing.T) {
	issuer, _ := NewTokens("secret-a", time.Hour)
	verifier, _ := NewTokens("secret-b", time.Hour)

	signed, err := issuer.Issue(domain.User{ID: uuid.New(), Role: domain.RoleMember})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens("  ", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2-but-longer")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !CheckPassword(hash, "hunter2-but-longer") {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("expected wrong password to fail")
	}
}
