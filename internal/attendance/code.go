package attendance

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet leaves out 0, O, 1 and I. Its length divides 256, so a byte
// modulo the length is uniform.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const defaultCodeLength = 6

// GenerateCode returns a random session code of length n.
func GenerateCode(n int) (string, error) {
	if n <= 0 {
		n = defaultCodeLength
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
