package referralcode

import (
	"crypto/rand"
	"fmt"
)

// Alphabet leaves out 0, O, 1 and I so codes survive being read aloud.
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Generate creates a cryptographically secure random code of length chars.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length: %d", length)
	}

	// Rejection sampling to avoid modulo bias.
	maxRandomByte := 256 - 256%len(Alphabet)

	code := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if int(b) >= maxRandomByte {
				continue
			}
			code[written] = Alphabet[int(b)%len(Alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(code), nil
}
