package utils

import (
	"strings"
	"testing"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", 42, "dealer", 5)
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	uid, userType, err := ParseAccessToken("secret", tok.Token)
	if err != nil {
		t.Fatalf("expected token to parse, got %v", err)
	}
	if uid != 42 || userType != "dealer" {
		t.Fatalf("got uid=%d type=%q", uid, userType)
	}
	if _, _, err := ParseAccessToken("other", tok.Token); err == nil {
		t.Fatal("expected wrong secret to fail")
	}
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	tok, err := NewAccessToken("secret", 7, "individual", -1)
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	if _, _, err := ParseAccessToken("secret", tok.Token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSessionTokenShape(t *testing.T) {
	a, err := NewSessionToken()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewSessionToken()
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a == b {
		t.Fatal("expected two tokens to differ")
	}
	if HashToken(a) == a || len(HashToken(a)) != 64 {
		t.Fatal("expected sha256 hex digest")
	}
}

func TestPasswordHashingUsesRandomSalt(t *testing.T) {
	h1, err := HashPassword("S3curePass!", 4)
	if err != nil {
		t.Fatalf("unexpected error hashing password: %v", err)
	}
	h2, _ := HashPassword("S3curePass!", 4)
	if h1 == h2 {
		t.Fatal("expected distinct hashes for the same password")
	}
	if !VerifyPassword(h1, "S3curePass!") || !VerifyPassword(h2, "S3curePass!") {
		t.Fatal("expected both hashes to verify")
	}
	if VerifyPassword(h1, "wrong") {
		t.Fatal("expected verification to fail for wrong password")
	}
}

func TestNewOTP(t *testing.T) {
	for _, n := range []int{4, 6} {
		code, err := NewOTP(n)
		if err != nil {
			t.Fatal(err)
		}
		if len(code) != n || strings.Trim(code, "0123456789") != "" {
			t.Fatalf("bad otp %q for %d digits", code, n)
		}
	}
}
