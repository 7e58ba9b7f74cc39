package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// NewOTP returns a numeric one-time code with exactly digits characters.
// Leading zeros are kept so "0042" is a valid 4 digit code.
func NewOTP(digits int) (string, error) {
	if digits <= 0 {
		digits = 4
	}
	var b strings.Builder
	b.Grow(digits)
	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
