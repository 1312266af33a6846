package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenStore holds the set of accepted bearer secrets. Secrets are stored as
// SHA-256 hashes to protect against memory dumps. The set is built once at
// startup and read-only afterwards.
type TokenStore struct {
	hashes map[string]struct{}
}

// NewTokenStore creates a TokenStore from the accepted secret values.
func NewTokenStore(tokens []string) *TokenStore {
	ts := &TokenStore{hashes: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		if t != "" {
			ts.hashes[hashToken(t)] = struct{}{}
		}
	}
	return ts
}

// Accepts reports whether the presented token matches any accepted secret.
func (ts *TokenStore) Accepts(token string) bool {
	if token == "" {
		return false
	}
	_, ok := ts.hashes[hashToken(token)]
	return ok
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
