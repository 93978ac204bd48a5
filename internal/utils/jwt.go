// Package utils provides helpers for the signed tokens presented by the
// payment collaborator.
package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RolePayment is the role claim carried by payment callback tokens.
const RolePayment = "PAYMENT"

// ErrInvalidToken is returned for tokens that fail signature, algorithm
// or expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims understood by the API.  Subject names the
// caller (for example the payment provider) and Role gates endpoints.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SignedToken is a serialized JWT along with its expiry.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewToken builds and signs an HS256 JWT for subject with role.  The
// token includes sub, role, exp and iat claims.
func NewToken(secret, subject, role string, ttl time.Duration) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// NewPaymentToken signs a token carrying the PAYMENT role.
func NewPaymentToken(secret, subject string, ttl time.Duration) (SignedToken, error) {
	return NewToken(secret, subject, RolePayment, ttl)
}

// ParseToken verifies raw against secret and returns its claims.  Only
// HS256 is accepted and an expiry claim is mandatory.
func ParseToken(secret, raw string) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
