package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Viewer is the signed-in user looking at the board. The zero value is an
// anonymous viewer.
type Viewer struct {
	UserID  string
	Email   string
	IsAdmin bool
	Expires time.Time
}

// LoggedIn reports whether the viewer has an identity.
func (v Viewer) LoggedIn() bool { return v.UserID != "" }

// ErrExpired is returned for tokens whose exp claim has passed.
var ErrExpired = errors.New("session: access token expired")

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// FromAccessToken derives the viewer from a Supabase session JWT. With a
// secret the signature is verified (HS256); without one the claims are only
// decoded, since the store re-checks the token on every request anyway.
// An empty token yields the anonymous viewer.
func FromAccessToken(token, secret string, now time.Time) (Viewer, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Viewer{}, nil
	}

	var c claims
	if secret != "" {
		parser := jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(func() time.Time { return now }),
		)
		_, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return Viewer{}, ErrExpired
			}
			return Viewer{}, fmt.Errorf("session: verify token: %w", err)
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
			return Viewer{}, fmt.Errorf("session: decode token: %w", err)
		}
		if c.ExpiresAt != nil && c.ExpiresAt.Time.Before(now) {
			return Viewer{}, ErrExpired
		}
	}

	if c.Subject == "" {
		return Viewer{}, errors.New("session: token has no subject")
	}
	v := Viewer{UserID: c.Subject, Email: c.Email}
	if c.ExpiresAt != nil {
		v.Expires = c.ExpiresAt.Time
	}
	return v, nil
}
