package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for opaque session tokens
	"encoding/hex"  // hex encoding and decoding functions
	"errors"
	"strconv"
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// Marketplace users receive one after a successful OTP or password login and
// send it as "Authorization: Bearer <token>".
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a marketplace user. The
// claims carry the user id (sub), the user type (dealer or individual), the
// expiry and the issue time.
func NewAccessToken(secret string, userID uint64, userType string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":       strconv.FormatUint(userID, 10),
		"user_type": userType,
		"exp":       exp.Unix(),
		"iat":       now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ErrInvalidToken is returned by ParseAccessToken for any token that fails
// signature, algorithm or expiry checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// ParseAccessToken validates raw against secret and returns the user id and
// user type carried in its claims.
func ParseAccessToken(secret, raw string) (uint64, string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Only HMAC signed tokens are accepted.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return 0, "", ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", ErrInvalidToken
	}
	var uid uint64
	switch v := claims["sub"].(type) {
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, "", ErrInvalidToken
		}
		uid = n
	case float64:
		// numeric JSON values decode as float64
		uid = uint64(v)
	default:
		return 0, "", ErrInvalidToken
	}
	if uid == 0 {
		return 0, "", ErrInvalidToken
	}
	userType, _ := claims["user_type"].(string)
	return uid, userType, nil
}

// NewSessionToken returns an opaque admin session credential: 32 bytes of
// secure random data, hex encoded (64 characters).
func NewSessionToken() (string, error) {
	return randomHex(32)
}

// HashToken returns the SHA-256 hash of an opaque token as a hex string.
// Only the hash is persisted so a leaked session table cannot be replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
