package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/accesscontrol"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

const (
	securityContextKey = "security_context"
	rawTokenKey        = "raw_access_token"
	apiKeyHeader       = "X-API-Key"
)

// Middleware validates bearer tokens through the access-control facade and
// threads the resulting SecurityContext into the request.
type Middleware struct {
	facade *accesscontrol.Facade
}

// NewMiddleware constructs middleware.
func NewMiddleware(facade *accesscontrol.Facade) *Middleware {
	return &Middleware{facade: facade}
}

// Handle enforces authentication and rate limits for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}
	rawToken := parts[1]

	result, err := m.facade.Authenticate(c.Context(), rawToken, c.IP(), c.Get(apiKeyHeader))
	if err != nil {
		var rlErr *accesscontrol.RateLimitError
		if errors.As(err, &rlErr) {
			setRateHeaders(c, rlErr.Status)
			c.Set("Retry-After", strconv.FormatInt(secondsUntil(rlErr.Status), 10))
			return apperrors.NewTooManyRequests("rate limit exceeded", map[string]any{
				"tier":  string(rlErr.Status.Tier),
				"limit": rlErr.Status.Limit,
				"reset": rlErr.Status.ResetAt.Unix(),
			})
		}
		// Every authentication failure looks the same from outside.
		return apperrors.NewUnauthorized("invalid token")
	}

	setRateHeaders(c, result.RateLimit.Restrictive)
	c.Locals(securityContextKey, result.Context)
	c.Locals(rawTokenKey, rawToken)
	return c.Next()
}

func setRateHeaders(c *fiber.Ctx, status accesscontrol.RateStatus) {
	if status.Limit == 0 {
		return
	}
	c.Set("X-RateLimit-Limit", strconv.FormatInt(status.Limit, 10))
	c.Set("X-RateLimit-Remaining", strconv.FormatInt(status.Remaining, 10))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(status.ResetAt.Unix(), 10))
}

func secondsUntil(status accesscontrol.RateStatus) int64 {
	secs := status.ResetAt.Unix() - time.Now().Unix()
	if secs < 1 {
		secs = 1
	}
	return secs
}

// ContextFromRequest retrieves the authenticated security context.
func ContextFromRequest(c *fiber.Ctx) (*accesscontrol.SecurityContext, bool) {
	val := c.Locals(securityContextKey)
	if val == nil {
		return nil, false
	}
	secCtx, ok := val.(*accesscontrol.SecurityContext)
	return secCtx, ok
}

// RawTokenFromRequest returns the bearer token that authenticated the
// request, for logout flows that revoke it.
func RawTokenFromRequest(c *fiber.Ctx) (string, bool) {
	val := c.Locals(rawTokenKey)
	if val == nil {
		return "", false
	}
	token, ok := val.(string)
	return token, ok
}
