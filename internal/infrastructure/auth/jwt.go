package auth

import (
	"errors"
	"time"

	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType represents the type of JWT token
type TokenType string

const TokenTypeAccess TokenType = "access"

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingTenantID  = errors.New("missing tenant_id in claims")
	ErrMissingUserID    = errors.New("missing user_id in claims")
)

// Claims represents custom JWT claims. Subordinates lists the users that
// report to the caller; it backs the "children" permission tier.
type Claims struct {
	jwt.RegisteredClaims
	TenantID     string    `json:"tenant_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	Permissions  []string  `json:"permissions,omitempty"`
	Subordinates []string  `json:"subordinates,omitempty"`
	TokenType    TokenType `json:"token_type"`
}

// JWTService signs and validates access tokens. Tokens are issued by the
// identity provider in production; GenerateAccessToken serves tooling and
// tests.
type JWTService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret:     []byte(cfg.Secret),
		expiration: cfg.AccessTokenExpiration,
		issuer:     cfg.Issuer,
	}
}

// GenerateTokenInput contains input for token generation
type GenerateTokenInput struct {
	TenantID     uuid.UUID
	UserID       uuid.UUID
	Username     string
	Permissions  []string
	Subordinates []uuid.UUID
}

// GenerateAccessToken signs an access token and returns it with its expiry
func (s *JWTService) GenerateAccessToken(input GenerateTokenInput) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiration)

	subordinates := make([]string, len(input.Subordinates))
	for i, id := range input.Subordinates {
		subordinates[i] = id.String()
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   input.UserID.String(),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID:     input.TenantID.String(),
		UserID:       input.UserID.String(),
		Username:     input.Username,
		Permissions:  input.Permissions,
		Subordinates: subordinates,
		TokenType:    TokenTypeAccess,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateAccessToken validates an access token and returns its claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, ErrInvalidTokenType
	}
	if claims.TenantID == "" {
		return nil, ErrMissingTenantID
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}

	return claims, nil
}

// Actor converts the claims into the caller identity used by the
// permission ladder. Malformed identifiers make the claims invalid.
func (c *Claims) Actor() (access.Actor, error) {
	tenantID, err := uuid.Parse(c.TenantID)
	if err != nil {
		return access.Actor{}, ErrInvalidClaims
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return access.Actor{}, ErrInvalidClaims
	}
	subordinates := make([]uuid.UUID, 0, len(c.Subordinates))
	for _, s := range c.Subordinates {
		id, err := uuid.Parse(s)
		if err != nil {
			return access.Actor{}, ErrInvalidClaims
		}
		subordinates = append(subordinates, id)
	}
	return access.Actor{
		UserID:       userID,
		TenantID:     tenantID,
		Subordinates: subordinates,
		Permissions:  c.Permissions,
	}, nil
}

// GetRemainingTTL returns how long the token stays valid
func (c *Claims) GetRemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	if ttl := time.Until(c.ExpiresAt.Time); ttl > 0 {
		return ttl
	}
	return 0
}

// GetAccessTokenExpiration returns the access token lifetime
func (s *JWTService) GetAccessTokenExpiration() time.Duration {
	return s.expiration
}
