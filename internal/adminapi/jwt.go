package adminapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a bearer token fails signature or
// claims validation.
var ErrInvalidToken = errors.New("adminapi: invalid token")

// jwtService issues and validates the HMAC-signed bearer tokens that
// gate the admin surface. This node has exactly one operator identity,
// so a valid signature is the whole authorization check.
type jwtService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func newJWTService(secret string, ttl time.Duration) *jwtService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &jwtService{secret: []byte(secret), issuer: "idhostd", ttl: ttl}
}

// IssueToken mints a bearer token for subject (an operator-chosen label,
// e.g. "cli" or a hostname), used by `idhostd token`.
func (s *jwtService) IssueToken(subject string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("adminapi: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses and verifies a bearer token, returning its claims.
func (s *jwtService) Validate(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("adminapi: unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
