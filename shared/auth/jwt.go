package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidSessionToken = errors.New("invalid session token")

// SessionClaims is the payload carried by the session cookie. The cookie only
// points at the server-side session; it never carries profile data.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// JWTAuthenticator signs and validates HS256 session tokens.
type JWTAuthenticator struct {
	audience string
	issuer   string
}

// NewJWTAuthenticator creates a new JWTAuthenticator instance.
func NewJWTAuthenticator(audience, issuer string) JWTAuthenticator {
	return JWTAuthenticator{
		audience: audience,
		issuer:   issuer,
	}
}

// IssueSessionToken signs a session token for sessionID owned by subject.
func (a *JWTAuthenticator) IssueSessionToken(sessionID, subject string, expiresAt time.Time, secret string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			Audience:  jwt.ClaimStrings{a.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	return a.GenerateToken(claims, secret)
}

// ParseSessionToken validates tokenString and returns its claims.
func (a *JWTAuthenticator) ParseSessionToken(tokenString, secret string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if _, err := a.ValidateTokenWithClaims(tokenString, secret, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}

	if claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing sid", ErrInvalidSessionToken)
	}

	return claims, nil
}

// GenerateToken generates a JWT token with the given claims and secret.
func (a *JWTAuthenticator) GenerateToken(claims jwt.Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenStr, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenStr, nil
}

// ValidateTokenWithClaims validates a JWT token and parses it into the provided claims type.
// The claims parameter should be a pointer to a struct that implements jwt.Claims.
func (a *JWTAuthenticator) ValidateTokenWithClaims(tokenString, secret string, claims jwt.Claims) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return []byte(secret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithAudience(a.audience),
		jwt.WithIssuer(a.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return token, nil
}
