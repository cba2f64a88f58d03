// Package auth resolves user identity from bearer tokens and answers
// project-level authorization questions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("auth: no bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// MembershipStore answers project membership lookups.
type MembershipStore interface {
	IsProjectMember(ctx context.Context, projectID, userID string) (bool, error)
}

// Claims carries the user identity embedded in an access token.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Identity validates access tokens and checks project membership.
type Identity struct {
	secret []byte
	store  MembershipStore
}

func NewIdentity(secret []byte, s MembershipStore) *Identity {
	return &Identity{secret: secret, store: s}
}

// ParseToken validates an HS256 signed token and returns its claims.
func (a *Identity) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CurrentUser resolves the user ID from the request's Authorization header.
func (a *Identity) CurrentUser(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", ErrNoToken
	}
	claims, err := a.ParseToken(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// CanReadProject reports whether userID is a member of projectID.
func (a *Identity) CanReadProject(ctx context.Context, userID, projectID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return a.store.IsProjectMember(ctx, projectID, userID)
}

// IssueToken signs a token for the given user, valid for the given duration.
func (a *Identity) IssueToken(userID, name, email string, duration time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			Issuer:    "zyro",
		},
		Name:  name,
		Email: email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
