package adminapi

import "github.com/golang-jwt/jwt/v5"

// Claims is the admin API's JWT payload. There is no multi-user
// operator model: a valid token simply proves possession of the
// signing secret, scoped to this one subject string
// trimmed to what a single-operator surface needs.
type Claims struct {
	jwt.RegisteredClaims
}
