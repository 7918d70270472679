package auth

import (
	"fmt"
	"time"

	"github.com/brandkart/brandkart-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// Role values this service understands. Token minting happens in the identity
// service; the checkout engine only verifies and scopes.
const (
	RoleBuyer = "buyer"
	RoleAdmin = "admin"
)

// AccessTokenClaims is the typed JWT presented by buyers and admins.
type AccessTokenClaims struct {
	BuyerID uuid.UUID `json:"buyer_id"`
	Role    string    `json:"role"`
	jwt.RegisteredClaims
}

// ParseAccessToken verifies the signature, issuer and expiry of a bearer token.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &AccessTokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwtSigningMethod {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token invalid")
	}
	if claims.BuyerID == uuid.Nil {
		return nil, fmt.Errorf("buyer id claim missing")
	}
	return claims, nil
}

// MintAccessToken issues a signed JWT; used by tests and local tooling only.
func MintAccessToken(cfg config.JWTConfig, now time.Time, buyerID uuid.UUID, role string, ttl time.Duration) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	claims := AccessTokenClaims{
		BuyerID: buyerID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	return token.SignedString([]byte(cfg.Secret))
}
