package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned when an API key is missing or unknown.
var ErrUnauthorized = errors.New("unauthorized")

// APIKeyInfo holds the identity data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
}

// APIKeyRepository provides lookup of API keys by their hash.
type APIKeyRepository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// SecurityHandler authenticates admin requests with a peppered SHA-256 hash
// of the presented API key and a constant-time comparison.
type SecurityHandler struct {
	apikeys APIKeyRepository
	pepper  []byte
}

// NewSecurityHandler constructs a SecurityHandler.
func NewSecurityHandler(apikeys APIKeyRepository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{apikeys: apikeys, pepper: pepper}
}

// Require wraps next so it only runs when the X-API-Key header authenticates.
func (s *SecurityHandler) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" || s.authenticate(r.Context(), key) != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "valid API key required")
			return
		}
		next(w, r)
	}
}

func (s *SecurityHandler) authenticate(ctx context.Context, key string) error {
	sum := s.hash(key)
	hexHash := hex.EncodeToString(sum)

	info, err := s.apikeys.FindByHash(ctx, hexHash)
	if err != nil {
		return ErrUnauthorized
	}

	// Constant-time comparison guards against timing side-channels even
	// though the lookup already matched.
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return ErrUnauthorized
	}
	if !hmac.Equal(sum, stored) {
		return ErrUnauthorized
	}
	return nil
}

// hash computes HMAC-SHA256 of the key with the server pepper, so a leaked
// table alone cannot be used to brute-force keys.
func (s *SecurityHandler) hash(key string) []byte {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}
