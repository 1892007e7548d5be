package service

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// generateOTPCode generates a cryptographically secure random numeric code
func generateOTPCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
