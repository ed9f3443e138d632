package middleware

import (
	"strings"

	apperrors "go-pos-ws/pkg/errors"
	"go-pos-ws/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by RequireCashier.
const (
	LocalCashierID   = "cashier_id"
	LocalCashierName = "cashier_name"
	LocalPrivileges  = "privileges"
)

// Privileges checked by RequirePrivilege.
const (
	PrivilegeCatalogManage       = "catalog:manage"
	PrivilegeSettingsUpdate      = "settings:update"
	PrivilegeTransactionComplete = "transaction:complete"
)

// RequireCashier validates the bearer token and sets cashier info in context
func RequireCashier(signer *jwt.Signer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "missing authorization token")
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return unauthorized(c, "invalid authorization format, use: Bearer <token>")
		}

		claims, err := signer.ValidateToken(parts[1])
		if err != nil {
			return unauthorized(c, "invalid or expired token")
		}

		c.Locals(LocalCashierID, claims.CashierID)
		c.Locals(LocalCashierName, claims.CashierName)
		c.Locals(LocalPrivileges, claims.Privileges)

		return c.Next()
	}
}

// RequirePrivilege checks if the authenticated cashier has the required privilege
func RequirePrivilege(requiredPrivilege string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		privileges, _ := c.Locals(LocalPrivileges).([]string)
		for _, p := range privileges {
			if p == requiredPrivilege {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    apperrors.CodeForbidden,
				"message": "requires '" + requiredPrivilege + "' privilege",
			},
		})
	}
}

// Cashier returns the identity RequireCashier stored on the request.
func Cashier(c *fiber.Ctx) (id, name string) {
	id, _ = c.Locals(LocalCashierID).(string)
	name, _ = c.Locals(LocalCashierName).(string)
	return id, name
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    apperrors.CodeUnauthorized,
			"message": message,
		},
	})
}
