package auth

import (
	"fmt"
	"time"

	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/golang-jwt/jwt/v5"
)

// PortalTokenLifetime is the fixed validity window of a portal session token.
const PortalTokenLifetime = 12 * time.Hour

// PortalClaims is the payload of a customer-portal JWT.
type PortalClaims struct {
	CustomerID string `json:"customer_id"`
	TenantID   string `json:"organization_id"`
	Type       string `json:"type"`
	jwt.RegisteredClaims
}

const portalTokenType = "portal"

// IssuePortalToken signs a 12-hour portal session token for customerID within tenantID.
func IssuePortalToken(secret []byte, tenantID, customerID string, now time.Time) (string, error) {
	claims := PortalClaims{
		CustomerID: customerID,
		TenantID:   tenantID,
		Type:       portalTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(PortalTokenLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyPortalToken validates a portal token's signature, expiry, and type tag
// against the shared secret, returning the scoped tenant and customer.
func VerifyPortalToken(secret []byte, tokenString string) (*PortalClaims, error) {
	claims := &PortalClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ierr.WithError(err).
			WithMessage("invalid portal token").
			Mark(ierr.ErrPermissionDenied)
	}

	if claims.Type != portalTokenType {
		return nil, ierr.NewError("token is not a portal token").
			Mark(ierr.ErrPermissionDenied)
	}

	return claims, nil
}
