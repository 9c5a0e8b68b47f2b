// Package auth covers everything between a browser and a logged-in identity:
// password hashing, Google sign-in, the signed session cookie and the
// middleware that gates protected routes.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. The user logs in (POST /api/login, or Google via /auth/google)
//  2. SessionManager.Start stores a Session{id, user snapshot, expiry}
//     server-side and sets the "sid" cookie
//  3. On every request LoadSession reads the cookie, verifies its signature,
//     looks the session up and puts the snapshot in the request context
//  4. RequireLogin rejects requests without a session (401) or whose
//     snapshot is not verified (403)
//
// WHY SIGN AN OPAQUE ID INSTEAD OF PUTTING THE USER IN THE JWT?
// A JWT holding the identity is valid until it expires, whatever the server
// thinks. Logout could only delete the cookie on the client. Keeping the
// session server-side means logout and expiry take effect immediately; the
// JWT only proves the id was issued by us, so forged or tampered cookies are
// rejected without touching the session store.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<session id>","exp":1234567890,"iss":"social-demo"}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "social-demo"

// TokenService signs and verifies session cookies.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// Generate one with: SESSION_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Sign returns a token carrying sessionID in the "sub" claim.
//
// The token expires together with the session, so a cookie outliving its
// session (e.g. a clock-skewed browser) is rejected before the store lookup.
func (s *TokenService) Sign(sessionID string, expiresAt time.Time) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies a token and returns the session id it carries.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Token is not expired
//   - Issuer matches
//   - Algorithm is HS256 (blocks the "alg":"none" confusion attack)
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}
	return c.Subject, nil
}
