package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/accesscontrol"
	"github.com/spec-kit/account-service/internal/domain"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// RequireAuthenticated ensures a caller passed the auth middleware.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		secCtx, ok := ContextFromRequest(c)
		if !ok || !secCtx.Authenticated() {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireRole ensures the caller holds at least the given role. Finer
// decisions (who may touch which target) stay in the services behind the
// role guard; this is only the coarse gate on the route.
func RequireRole(min domain.Role) fiber.Handler {
	guard := accesscontrol.NewRoleGuard()
	return func(c *fiber.Ctx) error {
		secCtx, ok := ContextFromRequest(c)
		if !ok || !secCtx.Authenticated() {
			return apperrors.NewUnauthorized("authentication required")
		}
		if d := guard.RequireAtLeast(secCtx.Role(), min); !d.Allowed {
			return apperrors.NewForbidden(d.Reason, map[string]any{
				"operation": d.Operation,
			})
		}
		return c.Next()
	}
}
