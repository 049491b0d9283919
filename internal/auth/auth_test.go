package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/matryer/is"
)

func TestIssueVerify(t *testing.T) {
	is := is.New(t)
	a, err := NewAuthorizer("s3cret", "givemart")
	is.NoErr(err)

	token, err := a.Issue("alice", []string{ScopePayoutsManage}, time.Hour)
	is.NoErr(err)

	claims, err := a.Verify(token)
	is.NoErr(err)
	is.Equal(claims.Subject, "alice")
	is.True(claims.HasScope(ScopePayoutsManage))
	is.True(claims.HasScope(ScopePayoutsRead))
	is.True(!claims.HasScope(ScopeDonationsRecord))
}

func TestVerifyRejects(t *testing.T) {
	a, err := NewAuthorizer("s3cret", "givemart")
	if err != nil {
		t.Fatal(err)
	}
	other, _ := NewAuthorizer("other", "givemart")
	otherIssuer, _ := NewAuthorizer("s3cret", "someone-else")

	expired, _ := NewAuthorizer("s3cret", "givemart")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tokenFor := func(a *Authorizer) string {
		tok, err := a.Issue("bob", []string{ScopePayoutsRead}, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		return tok
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"wrong secret", tokenFor(other)},
		{"wrong issuer", tokenFor(otherIssuer)},
		{"expired", tokenFor(expired)},
		{"unsigned", func() string {
			tok, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
				RegisteredClaims: jwt.RegisteredClaims{Issuer: "givemart", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
			}).SignedString(jwt.UnsafeAllowNoneSignatureType)
			return tok
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Verify(tt.token); err == nil {
				t.Fatalf("expected %s token to be rejected", tt.name)
			}
		})
	}
}

func TestIssueUnknownScope(t *testing.T) {
	is := is.New(t)
	a, _ := NewAuthorizer("s3cret", "givemart")
	_, err := a.Issue("carol", []string{"root"}, time.Hour)
	is.True(errors.Is(err, ErrUnknownScope))
}

func TestMissingSecret(t *testing.T) {
	is := is.New(t)
	_, err := NewAuthorizer("", "givemart")
	is.True(errors.Is(err, ErrMissingSecret))
}
