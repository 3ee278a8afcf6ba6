package random

import (
	"github.com/google/uuid"
)

// Random provides random identifiers that can be mocked for testing
type Random interface {
	// UUID returns a random (version 4) UUID in canonical string form
	UUID() string
}

// CryptoRandom implements Random using crypto/rand via google/uuid
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// UUID returns a new random UUID
func (r *CryptoRandom) UUID() string {
	return uuid.NewString()
}
