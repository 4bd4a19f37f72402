// Package auth verifies signed approver assertions. Authentication of the
// human belongs to the transport layer; this is a boundary check that binds
// a decision to an asserted identity so the audit trail can record who
// approved what.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

var (
	ErrEmptySecret    = errors.New("auth: signing secret must not be empty")
	ErrMissingSubject = errors.New("auth: assertion has no subject")
)

// approverClaims is the JWT claim set for an approver assertion.
type approverClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256-signed approver assertions.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier over a shared signing secret.
func NewVerifier(secret []byte) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &Verifier{secret: secret}, nil
}

// VerifyApprover parses and validates the assertion, returning the asserted
// approver identity.
func (v *Verifier) VerifyApprover(assertion string) (contracts.Approver, error) {
	var claims approverClaims
	token, err := jwt.ParseWithClaims(assertion, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return contracts.Approver{}, fmt.Errorf("auth: parsing assertion: %w", err)
	}
	if !token.Valid {
		return contracts.Approver{}, errors.New("auth: assertion invalid")
	}
	if claims.Subject == "" {
		return contracts.Approver{}, ErrMissingSubject
	}
	return contracts.Approver{ID: claims.Subject, Role: claims.Role}, nil
}

// MintAssertion signs an approver assertion valid for ttl. Used by the CLI
// and tests; production assertions come from the transport's identity
// provider.
func (v *Verifier) MintAssertion(approver contracts.Approver, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := approverClaims{
		Role: approver.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   approver.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing assertion: %w", err)
	}
	return signed, nil
}
