package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/types"
)

// APIKeyPrefix is prepended to every generated API key so leaked keys are
// recognizable in logs and secret scanners without decoding anything.
const APIKeyPrefix = "bxb_"

// APIKeyRecord is the persisted, hashed form of an API key.
type APIKeyRecord struct {
	ID         string
	TenantID   string
	HashedKey  string
	Name       string
	Status     types.ApiKeyStatus
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// APIKeyRepository looks up API keys by their hash. Lookup is always by hash:
// the raw key is never persisted.
type APIKeyRepository interface {
	GetByHash(ctx context.Context, hashedKey string) (*APIKeyRecord, error)
}

// HashAPIKey returns the SHA-256 hex digest of a raw API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey returns a new bxb_-prefixed API key in its raw, displayable
// form. Callers must hash it with HashAPIKey before persisting.
func GenerateAPIKey() string {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		panic(err)
	}
	return APIKeyPrefix + hex.EncodeToString(raw)
}

// AuthenticateAPIKey resolves the Authorization: Bearer <key> header to a
// tenant id. It rejects expired or revoked keys, per the authentication contract.
func AuthenticateAPIKey(ctx context.Context, repo APIKeyRepository, header string, now time.Time) (tenantID string, err error) {
	key := strings.TrimPrefix(strings.TrimSpace(header), "Bearer ")
	if key == "" {
		return "", ierr.NewError("missing Authorization header").
			Mark(ierr.ErrPermissionDenied)
	}

	rec, err := repo.GetByHash(ctx, HashAPIKey(key))
	if err != nil {
		return "", ierr.WithError(err).
			WithMessage("api key lookup failed").
			Mark(ierr.ErrPermissionDenied)
	}

	if rec.Status != types.ApiKeyStatusActive {
		return "", ierr.NewError("api key is revoked").
			Mark(ierr.ErrPermissionDenied)
	}

	if rec.ExpiresAt != nil && now.After(*rec.ExpiresAt) {
		return "", ierr.NewError("api key has expired").
			Mark(ierr.ErrPermissionDenied)
	}

	return rec.TenantID, nil
}
