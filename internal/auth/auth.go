package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("token signing secret is not configured")
	ErrUnknownScope  = errors.New("unknown scope")
)

// Claims are carried by operator and service tokens. The subject is only used
// for audit logs.
type Claims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope || slices.Contains(impliedScopes[s], scope) {
			return true
		}
	}
	return false
}

type Authorizer struct {
	secret []byte
	issuer string

	now func() time.Time
}

func NewAuthorizer(secret, issuer string) (*Authorizer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Authorizer{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue signs a HS256 token for subject, valid for ttl.
func (a *Authorizer) Issue(subject string, scopes []string, ttl time.Duration) (string, error) {
	for _, scope := range scopes {
		if !slices.Contains(Scopes, scope) {
			return "", fmt.Errorf("%w: %q", ErrUnknownScope, scope)
		}
	}
	now := a.now()
	claims := Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authorizer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

type claimsKey struct{}

func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func ClaimsContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}

// SubjectContext returns the token subject of the request, if any.
func SubjectContext(ctx context.Context) *string {
	claims := ClaimsContext(ctx)
	if claims == nil || claims.Subject == "" {
		return nil
	}
	sub := claims.Subject
	return &sub
}
