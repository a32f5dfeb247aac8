// Package auth issues and verifies bearer tokens and guards routes by role.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

// Claims carried by access tokens.
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.StandardClaims
}

// Tokens signs and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens builds a Tokens with the shared secret and token lifetime.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for p.
func (t *Tokens) Issue(p shared.Principal) (string, error) {
	now := t.now()
	claims := Claims{
		Username: p.Username,
		Roles:    p.Roles,
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(t.ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns its principal.
func (t *Tokens) Parse(raw string) (*shared.Principal, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		var verr *jwt.ValidationError
		if errors.As(err, &verr) && verr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, fmt.Errorf("%w: token expired", httpx.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: invalid token", httpx.ErrUnauthorized)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subject", httpx.ErrUnauthorized)
	}
	return &shared.Principal{UserID: id, Username: claims.Username, Roles: claims.Roles}, nil
}
