package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/telegram-auth-service/internal/domain"
	apperrors "github.com/spec-kit/telegram-auth-service/pkg/util"
)

// Role is the access level granted to a principal.
type Role int

const (
	RoleUser Role = iota + 1
	RoleAdmin
)

func roleOf(user *domain.User) Role {
	if user.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// RequireRole rejects principals below role. It must run after
// AuthMiddleware.Handle.
func RequireRole(role Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.Role < role {
			return apperrors.NewForbidden("admin role required")
		}
		return c.Next()
	}
}
