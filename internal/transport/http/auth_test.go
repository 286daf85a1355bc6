package http

import (
	"errors"
	"testing"
	"time"

	"escape-room-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

func TestTokenVerifierRoundTrip(t *testing.T) {
	v := NewTokenVerifier("secret", "escape-room")
	token, err := v.Sign(domain.Identity{UID: " u1 ", Name: "Dana", Email: "dana@example.com"}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	principal, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if principal.UID != "u1" || principal.Name != "Dana" || principal.Email != "dana@example.com" {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestTokenVerifierRejects(t *testing.T) {
	v := NewTokenVerifier("secret", "escape-room")
	good, err := v.Sign(domain.Identity{UID: "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	other, _ := NewTokenVerifier("other", "escape-room").Sign(domain.Identity{UID: "u1"}, time.Minute)
	wrongIssuer, _ := NewTokenVerifier("secret", "someone-else").Sign(domain.Identity{UID: "u1"}, time.Minute)

	expiredSigner := NewTokenVerifier("secret", "escape-room")
	expiredSigner.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _ := expiredSigner.Sign(domain.Identity{UID: "u1"}, time.Minute)

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, principalClaims{
		UID:              "u1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "escape-room"},
	}).SignedString([]byte("secret"))

	noUID, _ := v.Sign(domain.Identity{Name: "anon"}, time.Minute)

	cases := map[string]string{
		"empty":        "",
		"wrong secret": other,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"no expiry":    noExpiry,
		"no uid":       noUID,
		"tampered":     good[:len(good)-2] + "xx",
	}
	for name, token := range cases {
		if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}
