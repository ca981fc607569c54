package handlers

import (
	"carmarket/internal/domain"
	applog "carmarket/internal/log"
	"carmarket/internal/services"

	"github.com/gofiber/fiber/v2"
)

const actorKey = "actor"

// Identify resolves the sid cookie to an Actor and stores it in Locals.
// Anonymous requests get the zero Actor.
func Identify(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(actorKey, auth.CurrentActor(c.UserContext(), c.Cookies("sid")))
		return c.Next()
	}
}

func actorOf(c *fiber.Ctx) domain.Actor {
	a, _ := c.Locals(actorKey).(domain.Actor)
	return a
}

// RequireUser enforces that a user is logged in.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if actorOf(c).ID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(apiError{Error: "login required", Code: "unauthenticated"})
		}
		return c.Next()
	}
}

func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a := actorOf(c)
		if a.ID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(apiError{Error: "login required", Code: "unauthenticated"})
		}
		if !a.IsAdmin() {
			applog.Security(c.UserContext(), "access.denied.admin", map[string]any{"user_id": a.ID, "path": c.Path()})
			return c.Status(fiber.StatusForbidden).JSON(apiError{Error: "access denied", Code: "unauthorized"})
		}
		return c.Next()
	}
}
