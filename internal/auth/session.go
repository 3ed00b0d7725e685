// Package auth guards the admin surface and labels anonymous viewers.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidSignature   = errors.New("invalid token signature")
)

// SessionCookie is the cookie carrying the admin session token.
const SessionCookie = "xfive_admin"

const adminRole = "admin"

type sessionClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Sessions checks the fixed admin credential and issues signed session tokens.
type Sessions struct {
	user   string
	pass   string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions creates a session issuer for the given admin credential.
func NewSessions(user, pass string, secret []byte, ttl time.Duration) *Sessions {
	return &Sessions{user: user, pass: pass, secret: secret, ttl: ttl, now: time.Now}
}

// CheckCredentials compares user and pass with the configured pair in constant time.
func (s *Sessions) CheckCredentials(user, pass string) error {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.user))
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.pass))
	if userOK&passOK != 1 || s.user == "" {
		return ErrInvalidCredentials
	}
	return nil
}

// Issue returns a signed token for the admin.
func (s *Sessions) Issue() (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   s.user,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: adminRole,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Validate checks a session token and returns its subject.
func (s *Sessions) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return "", ErrInvalidSignature
		}
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Role != adminRole || claims.Subject != s.user {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// SetCookie stores token in the session cookie.
func (s *Sessions) SetCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

// ClearCookie removes the session cookie.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
