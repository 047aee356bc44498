// Package id generates URL-safe identifiers and short human join codes.
//
// NewID encodes UUIDv4 bytes as unpadded lowercase base32 (26 characters).
// NewCode draws from an upper-case alphabet without look-alike characters so
// codes can be read aloud or typed from another phone.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CodeAlphabet lists the characters NewCode may emit.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultCodeLength matches the six-character codes shown in the app.
const DefaultCodeLength = 6

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a random 26-character lowercase base32 identifier.
func NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(u[:])), nil
}

// NewCode returns a random code of length characters from CodeAlphabet.
func NewCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}
	var b strings.Builder
	b.Grow(length)
	for b.Len() < length {
		u, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("generate uuid: %w", err)
		}
		// Skip the version and variant bytes, which are not uniformly random.
		for i, c := range u {
			if i == 6 || i == 8 {
				continue
			}
			b.WriteByte(CodeAlphabet[int(c)%len(CodeAlphabet)])
			if b.Len() == length {
				break
			}
		}
	}
	return b.String(), nil
}
