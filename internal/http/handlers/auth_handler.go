package handlers

import (
	"time"

	"carmarket/internal/log"
	"carmarket/internal/services"
	"carmarket/internal/validate"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthHandler struct {
	Auth *services.AuthService
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func setSID(c *fiber.Ctx, sid string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    sid,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   false, // enable true behind TLS
		Expires:  expires,
	})
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, "auth.login", err)
	}
	email, ok := validate.Email(req.Email)
	if !ok {
		log.Security(ctx, "auth.login.fail", map[string]any{"email": req.Email, "reason": "bad_format"})
		return c.Status(fiber.StatusUnauthorized).JSON(apiError{Error: "invalid email or password", Code: "unauthenticated"})
	}
	if !validate.Password(req.Password) {
		log.Security(ctx, "auth.login.fail", map[string]any{"email": email, "reason": "bad_password_format"})
		return c.Status(fiber.StatusUnauthorized).JSON(apiError{Error: "invalid email or password", Code: "unauthenticated"})
	}

	// A fresh session id on every login.
	sid := uuid.NewString()
	u, err := h.Auth.Login(ctx, sid, email, req.Password)
	if err != nil {
		log.Security(ctx, "auth.login.fail", map[string]any{"email": email})
		return c.Status(fiber.StatusUnauthorized).JSON(apiError{Error: "invalid email or password", Code: "unauthenticated"})
	}
	setSID(c, sid, time.Time{})

	log.Audit(ctx, "auth.login.success", map[string]any{"email": email, "user_id": u.ID})
	return c.JSON(fiber.Map{"user": u.Actor()})
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := c.Cookies("sid")
	if sid != "" {
		_ = h.Auth.Logout(c.UserContext(), sid)
	}
	setSID(c, "", time.Now().Add(-1*time.Hour))
	log.Audit(c.UserContext(), "auth.logout", map[string]any{"user_id": actorOf(c).ID})
	return c.JSON(fiber.Map{"ok": true})
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"user": actorOf(c)})
}

// GET /api/v1/auth/csrf hands the current token to script clients, which
// echo it back in the X-Csrf-Token header.
func (h *AuthHandler) CSRF(c *fiber.Ctx) error {
	tok, _ := c.Locals("csrf").(string)
	return c.JSON(fiber.Map{"csrf_token": tok})
}
