package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/portyard/internal/authorization"
	obscontext "github.com/smallbiznis/portyard/internal/observability/context"
	"github.com/smallbiznis/portyard/internal/observability/logger"
	"go.uber.org/zap"
)

const contextRoleKey = "role_context"

// RoleResolver derives the caller's RoleContext from the asserted principal.
type RoleResolver interface {
	Resolve(ctx context.Context, principal authorization.Principal) authorization.RoleContext
}

// principalClaims is the identity assertion issued by the upstream identity
// provider. The subject is the username or email known to the user store.
type principalClaims struct {
	Email    string `json:"email,omitempty"`
	Elevated bool   `json:"elevated,omitempty"`
	jwt.RegisteredClaims
}

// Principal resolves the RoleContext for every request. Requests without a
// bearer token run as guest; a token that fails verification is rejected.
func (s *Server) Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := s.principalFromRequest(c)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("principal token rejected", zap.Error(err))
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		rc := s.resolver.Resolve(ctx, principal)
		actorID := ""
		if rc.UserID != 0 {
			actorID = rc.UserID.String()
		}
		c.Request = c.Request.WithContext(obscontext.WithActor(ctx, string(rc.Role), actorID))
		c.Set(contextRoleKey, rc)
		c.Next()
	}
}

func (s *Server) principalFromRequest(c *gin.Context) (authorization.Principal, error) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return authorization.Principal{}, nil
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return authorization.Principal{}, errors.New("malformed authorization header")
	}
	secret := strings.TrimSpace(s.cfg.AuthJWTSecret)
	if secret == "" {
		return authorization.Principal{}, errors.New("AUTH_JWT_SECRET is not configured")
	}

	var claims principalClaims
	_, err := jwt.ParseWithClaims(parts[1], &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return authorization.Principal{}, err
	}

	identifier := strings.TrimSpace(claims.Subject)
	if identifier == "" {
		identifier = strings.TrimSpace(claims.Email)
	}
	return authorization.Principal{Identifier: identifier, Elevated: claims.Elevated}, nil
}

// roleContext returns the context set by Principal, or guest.
func roleContext(c *gin.Context) authorization.RoleContext {
	if v, ok := c.Get(contextRoleKey); ok {
		if rc, ok := v.(authorization.RoleContext); ok {
			return rc
		}
	}
	return authorization.Guest()
}

// WriteRateLimit throttles mutating requests per resolved identifier.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.writeLimiter.Enabled() || !isWrite(c.Request.Method) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		rc := roleContext(c)
		result, err := s.writeLimiter.AllowWrite(ctx, rc.Identifier)
		if err != nil {
			logger.FromContext(ctx).Warn("write rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			logger.FromContext(ctx).Warn("write rate limit exceeded",
				zap.String("identifier", rc.Identifier),
				zap.String("route", c.FullPath()),
			)
			c.Header("Retry-After", strconv.Itoa(max(int(result.RetryAfter.Seconds()), 1)))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
