package session

import (
	"crypto/rand"
	"fmt"
)

// IDLength is the number of characters in a session identifier.
const IDLength = 128

const idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewID returns a random identifier of IDLength characters over [a-zA-Z0-9].
// Bytes >= 248 are rejected so every character is equally likely.
func NewID() (string, error) {
	const maxByte = 256 - 256%len(idAlphabet)

	out := make([]byte, 0, IDLength)
	buf := make([]byte, IDLength+IDLength/4)
	for len(out) < IDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, idAlphabet[int(b)%len(idAlphabet)])
			if len(out) == IDLength {
				break
			}
		}
	}
	return string(out), nil
}
