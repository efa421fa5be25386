package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/domainerr"
)

var (
	ErrTokenExpired = fmt.Errorf("%w: token has expired", domainerr.ErrUnauthenticated)
	ErrTokenInvalid = fmt.Errorf("%w: invalid token", domainerr.ErrUnauthenticated)
)

const tokenIssuer = "blood-bank"

// Claims are the bearer token claims.
type Claims struct {
	AccountID string     `json:"account_id"`
	Role      authz.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 bearer tokens.
type TokenIssuer struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{signingKey: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *TokenIssuer) Issue(a *Account) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID: a.ID.String(),
		Role:      a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.Username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates the token and returns the actor it was issued to.
func (t *TokenIssuer) Parse(raw string) (authz.Actor, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return t.signingKey, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return authz.Actor{}, ErrTokenExpired
		}
		return authz.Actor{}, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return authz.Actor{}, ErrTokenInvalid
	}
	id, err := uuid.Parse(claims.AccountID)
	if err != nil || !claims.Role.Valid() {
		return authz.Actor{}, ErrTokenInvalid
	}
	return authz.Actor{AccountID: id, Role: claims.Role}, nil
}
