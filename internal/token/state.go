package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// stateTTL bounds how long an issued authorization URL stays usable.
const stateTTL = 10 * time.Minute

// StateSigner issues and verifies the OAuth state parameter as a short-lived
// signed token, so the callback can tie an incoming code back to the subject
// that requested it.
type StateSigner struct {
	key []byte
	now func() time.Time
}

func NewStateSigner(key []byte) *StateSigner {
	return &StateSigner{key: key, now: time.Now}
}

// Sign wraps the subject into a signed state string.
func (s *StateSigner) Sign(subject string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Parse verifies the state string and returns the embedded subject.
func (s *StateSigner) Parse(state string) (string, error) {
	parsed, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("parsing oauth state: %w", err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("oauth state has no subject")
	}

	return claims.Subject, nil
}
