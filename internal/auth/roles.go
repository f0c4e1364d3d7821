package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/domain"
	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

// RequireAdmin ensures the caller holds an admin token.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.Role != domain.SenderAdmin {
			return apperrors.NewForbidden("admin role required")
		}
		return c.Next()
	}
}
