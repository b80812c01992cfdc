package auth

import (
	"testing"
	"time"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestTokenPairKindsAreDisjoint(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	pair, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := issuer.Verify(pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("Verify access: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if _, err := issuer.Verify(pair.RefreshToken, TokenRefresh); err != nil {
		t.Fatalf("Verify refresh: %v", err)
	}

	// A refresh token must never verify as access, and vice versa.
	if _, err := issuer.Verify(pair.RefreshToken, TokenAccess); err == nil {
		t.Fatal("refresh token accepted as access")
	}
	if _, err := issuer.Verify(pair.AccessToken, TokenRefresh); err == nil {
		t.Fatal("access token accepted as refresh")
	}
}

func TestTokenExpiryBoundary(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := issued
	issuer, err := NewTokenIssuer("test-secret",
		WithTokenAccessTTL(30*time.Minute),
		WithTokenClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	pair, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock = issued.Add(30*time.Minute - time.Second)
	if _, err := issuer.Verify(pair.AccessToken, TokenAccess); err != nil {
		t.Fatalf("token rejected one second before expiry: %v", err)
	}

	clock = issued.Add(30*time.Minute + time.Second)
	if _, err := issuer.Verify(pair.AccessToken, TokenAccess); err == nil {
		t.Fatal("token accepted one second after expiry")
	}
}

func TestTokenWrongSecretAndGarbage(t *testing.T) {
	issuer, _ := NewTokenIssuer("secret-one")
	other, _ := NewTokenIssuer("secret-two")

	pair, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := other.Verify(pair.AccessToken, TokenAccess); err == nil {
		t.Fatal("token accepted with wrong secret")
	}
	for _, raw := range []string{"", "garbage", "a.b", "a.b.c"} {
		if _, err := issuer.Verify(raw, TokenAccess); err == nil {
			t.Fatalf("malformed token %q accepted", raw)
		}
	}
}

func TestTokenIssuerClaimChecked(t *testing.T) {
	a, _ := NewTokenIssuer("shared-secret", WithTokenIssuerName("service-a"))
	b, _ := NewTokenIssuer("shared-secret", WithTokenIssuerName("service-b"))

	pair, err := a.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(pair.AccessToken, TokenAccess); err == nil {
		t.Fatal("token accepted across issuers")
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("  "); err == nil {
		t.Fatal("expected error for blank secret")
	}
}
