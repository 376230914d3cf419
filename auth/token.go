package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims defines the structure of the data stored inside an admin JWT.
// Admin tokens are issued to trusted backends, never to end users.
type AdminClaims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

// AdminTokens signs and validates the bearer tokens protecting the
// administrative HTTP surface.
type AdminTokens struct {
	key []byte
}

func NewAdminTokens(secret string) *AdminTokens {
	return &AdminTokens{key: []byte(secret)}
}

// Generate creates a signed JWT for a backend service.
func (a *AdminTokens) Generate(service string, ttl time.Duration) (string, error) {
	claims := &AdminClaims{
		Service: service,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "tradegate",
		},
	}

	// HS256: HMAC with SHA256, signed with the shared admin secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.key)
}

// Validate parses and validates the signature and expiration of a JWT string.
func (a *AdminTokens) Validate(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.key, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AdminClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
