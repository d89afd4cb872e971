package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/infrastructure/auth"
	"github.com/erp/treasury/internal/infrastructure/logger"
	"github.com/erp/treasury/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by the JWT middleware
const (
	JWTClaimsKey   = "jwt_claims"
	JWTActorKey    = "jwt_actor"
	JWTUserIDKey   = "jwt_user_id"
	JWTTenantIDKey = "jwt_tenant_id"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
)

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	JWTService *auth.JWTService
	// SkipPaths are matched exactly, SkipPathPrefixes by prefix
	SkipPaths        []string
	SkipPathPrefixes []string
	// OnError replaces the default 401 response
	OnError func(c *gin.Context, err error)
	Logger  *zap.Logger
}

// DefaultJWTConfig returns default JWT middleware configuration
func DefaultJWTConfig(jwtService *auth.JWTService) JWTMiddlewareConfig {
	return JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths:  []string{"/health", "/healthz", "/api/v1/system/ping"},
	}
}

// JWTAuthMiddleware creates JWT authentication middleware
func JWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(DefaultJWTConfig(jwtService))
}

// JWTAuthMiddlewareWithConfig authenticates the bearer token and stores the
// caller's access.Actor for GetActor
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if cfg.skips(c.Request.URL.Path) {
			c.Next()
			return
		}

		claims, actor, err := authenticate(cfg.JWTService, c.GetHeader(AuthHeaderKey))
		if err != nil {
			if cfg.OnError != nil {
				cfg.OnError(c, err)
				return
			}
			log.Warn("authentication rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			rejectUnauthenticated(c, err)
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTActorKey, actor)
		c.Set(JWTUserIDKey, claims.UserID)
		c.Set(JWTTenantIDKey, claims.TenantID)
		c.Request = c.Request.WithContext(logger.WithActor(c.Request.Context(), claims.TenantID, claims.UserID))

		log.Debug("authenticated",
			zap.String("tenant_id", claims.TenantID),
			zap.String("user_id", claims.UserID),
		)
		c.Next()
	}
}

func (cfg JWTMiddlewareConfig) skips(path string) bool {
	if slices.Contains(cfg.SkipPaths, path) {
		return true
	}
	return slices.ContainsFunc(cfg.SkipPathPrefixes, func(prefix string) bool {
		return strings.HasPrefix(path, prefix)
	})
}

func authenticate(svc *auth.JWTService, header string) (*auth.Claims, access.Actor, error) {
	token, ok := strings.CutPrefix(header, BearerPrefix)
	if !ok || token == "" {
		return nil, access.Actor{}, auth.ErrInvalidToken
	}
	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		return nil, access.Actor{}, err
	}
	actor, err := claims.Actor()
	if err != nil {
		return nil, access.Actor{}, err
	}
	return claims, actor, nil
}

func rejectUnauthenticated(c *gin.Context, err error) {
	code, message := dto.ErrCodeUnauthenticated, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		code, message = dto.ErrCodeTokenInvalid, "Token is not yet valid"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidTokenType),
		errors.Is(err, auth.ErrInvalidClaims):
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// GetJWTClaims returns the validated claims, or nil before authentication
func GetJWTClaims(c *gin.Context) *auth.Claims {
	v, _ := c.Get(JWTClaimsKey)
	claims, _ := v.(*auth.Claims)
	return claims
}

// GetActor returns the authenticated caller. The zero Actor is returned for
// unauthenticated requests and is rejected by every permission check.
func GetActor(c *gin.Context) access.Actor {
	v, _ := c.Get(JWTActorKey)
	actor, _ := v.(access.Actor)
	return actor
}

// GetJWTUserID returns the caller's user id as carried in the token
func GetJWTUserID(c *gin.Context) string {
	return c.GetString(JWTUserIDKey)
}

// GetJWTTenantID returns the caller's tenant id as carried in the token
func GetJWTTenantID(c *gin.Context) string {
	return c.GetString(JWTTenantIDKey)
}
