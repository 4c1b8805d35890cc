package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"veilchat/domain"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenCodec signs and validates session tokens. The secret should be
// loaded from an environment variable or a secret manager.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenCodec(secret string, ttl time.Duration) TokenCodec {
	return TokenCodec{secret: []byte(secret), ttl: ttl}
}

// Generate creates a signed JWT for a specific user.
func (c TokenCodec) Generate(identity domain.Identity) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: int64(identity.ID),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "veilchat",
		},
	}

	// HS256 (HMAC with SHA256), signed with the server's secret key.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Validate parses and validates the signature and expiration of a JWT string.
func (c TokenCodec) Validate(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
