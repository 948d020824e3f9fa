package credentials

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxSecretLen is the longest secret bcrypt accepts.
const MaxSecretLen = 72

// DefaultBcryptCost is used when BcryptHasher.Cost is zero.
const DefaultBcryptCost = bcrypt.DefaultCost

// Hasher turns secrets into digests and checks them.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// BcryptHasher hashes with bcrypt.
type BcryptHasher struct {
	Cost int
}

// Hash returns a bcrypt digest of secret.
func (h BcryptHasher) Hash(secret string) (string, error) {
	if len(secret) > MaxSecretLen {
		return "", ErrSecretTooLong
	}
	cost := h.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrSecretTooLong
		}
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether secret matches digest.
func (h BcryptHasher) Verify(secret, digest string) bool {
	if len(secret) > MaxSecretLen {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
