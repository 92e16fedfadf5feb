package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/types"
)

type fakeAPIKeyRepo struct {
	byHash map[string]*APIKeyRecord
}

func (f *fakeAPIKeyRepo) GetByHash(ctx context.Context, hashedKey string) (*APIKeyRecord, error) {
	rec, ok := f.byHash[hashedKey]
	if !ok {
		return nil, ierr.NewError("api key not found").Mark(ierr.ErrNotFound)
	}
	return rec, nil
}

func TestHashAPIKey_IsDeterministic(t *testing.T) {
	require.Equal(t, HashAPIKey("abc"), HashAPIKey("abc"))
	require.NotEqual(t, HashAPIKey("abc"), HashAPIKey("def"))
}

func TestGenerateAPIKey_HasPrefix(t *testing.T) {
	key := GenerateAPIKey()
	require.True(t, strings.HasPrefix(key, APIKeyPrefix))
}

func TestAuthenticateAPIKey_MissingHeaderErrors(t *testing.T) {
	_, err := AuthenticateAPIKey(context.Background(), &fakeAPIKeyRepo{byHash: map[string]*APIKeyRecord{}}, "", time.Now())
	require.Error(t, err)
}

func TestAuthenticateAPIKey_ActiveKeyResolvesTenant(t *testing.T) {
	hashed := HashAPIKey("bxb_good")
	repo := &fakeAPIKeyRepo{byHash: map[string]*APIKeyRecord{
		hashed: {TenantID: "tenant_1", Status: types.ApiKeyStatusActive},
	}}

	tenantID, err := AuthenticateAPIKey(context.Background(), repo, "Bearer bxb_good", time.Now())
	require.NoError(t, err)
	require.Equal(t, "tenant_1", tenantID)
}

func TestAuthenticateAPIKey_RevokedKeyErrors(t *testing.T) {
	hashed := HashAPIKey("bxb_revoked")
	repo := &fakeAPIKeyRepo{byHash: map[string]*APIKeyRecord{
		hashed: {TenantID: "tenant_1", Status: types.ApiKeyStatusRevoked},
	}}

	_, err := AuthenticateAPIKey(context.Background(), repo, "Bearer bxb_revoked", time.Now())
	require.Error(t, err)
}

func TestAuthenticateAPIKey_ExpiredKeyErrors(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	hashed := HashAPIKey("bxb_expired")
	repo := &fakeAPIKeyRepo{byHash: map[string]*APIKeyRecord{
		hashed: {TenantID: "tenant_1", Status: types.ApiKeyStatusActive, ExpiresAt: &past},
	}}

	_, err := AuthenticateAPIKey(context.Background(), repo, "Bearer bxb_expired", time.Now())
	require.Error(t, err)
}

func TestPortalToken_IssueThenVerifyRoundTrips(t *testing.T) {
	secret := []byte("shared-secret")
	now := time.Now()

	token, err := IssuePortalToken(secret, "tenant_1", "cust_1", now)
	require.NoError(t, err)

	claims, err := VerifyPortalToken(secret, token)
	require.NoError(t, err)
	require.Equal(t, "tenant_1", claims.TenantID)
	require.Equal(t, "cust_1", claims.CustomerID)
}

func TestPortalToken_WrongSecretFailsVerification(t *testing.T) {
	token, err := IssuePortalToken([]byte("secret-a"), "tenant_1", "cust_1", time.Now())
	require.NoError(t, err)

	_, err = VerifyPortalToken([]byte("secret-b"), token)
	require.Error(t, err)
}

func TestPortalToken_ExpiredTokenFailsVerification(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	secret := []byte("shared-secret")

	token, err := IssuePortalToken(secret, "tenant_1", "cust_1", past)
	require.NoError(t, err)

	_, err = VerifyPortalToken(secret, token)
	require.Error(t, err)
}
