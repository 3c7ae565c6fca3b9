// Package credentials generates the username/password pair handed to each
// provisioned instance.
package credentials

import (
	"fmt"

	"github.com/jmcvetta/randutil"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Supplier produces one credential string per call.
type Supplier interface {
	Supply() (string, error)
}

// RandomAlphanumeric supplies random [a-zA-Z0-9] strings of a fixed length.
type RandomAlphanumeric struct {
	length int
}

// NewRandomAlphanumeric creates a supplier of strings with the given length.
func NewRandomAlphanumeric(length int) (*RandomAlphanumeric, error) {
	if length <= 0 {
		return nil, fmt.Errorf("credential length must be positive, got %d", length)
	}
	return &RandomAlphanumeric{length: length}, nil
}

// Supply returns a fresh random string.
func (s *RandomAlphanumeric) Supply() (string, error) {
	v, err := randutil.String(s.length, alphanumeric)
	if err != nil {
		return "", fmt.Errorf("generate credential: %w", err)
	}
	return v, nil
}
