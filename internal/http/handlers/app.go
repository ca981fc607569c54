package handlers

import (
	"io"
	"time"

	applog "carmarket/internal/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Options tunes the middleware stack. Zero fields take the defaults below.
type Options struct {
	BodyLimit int
	// RateMax requests per RateWindow per client IP, across the whole app.
	RateMax    int
	RateWindow time.Duration
	// LoginMax attempts per LoginWindow per client IP on the login route.
	LoginMax    int
	LoginWindow time.Duration
	// AccessLog receives fiber's request log lines; nil disables them.
	AccessLog io.Writer
}

func (o Options) withDefaults() Options {
	if o.BodyLimit <= 0 {
		o.BodyLimit = 1 << 20 // 1 MiB
	}
	if o.RateMax <= 0 {
		o.RateMax = 60
	}
	if o.RateWindow <= 0 {
		o.RateWindow = time.Minute
	}
	if o.LoginMax <= 0 {
		o.LoginMax = 5
	}
	if o.LoginWindow <= 0 {
		o.LoginWindow = 10 * time.Minute
	}
	return o
}

// NewApp builds the fiber app: middleware, the JSON API under /api/v1 and a
// JSON 404 fallback.
func NewApp(d *Deps, o Options) *fiber.App {
	o = o.withDefaults()

	app := fiber.New(fiber.Config{
		AppName:      "carmarket",
		BodyLimit:    o.BodyLimit,
		ErrorHandler: ErrorHandler,
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(applog.Middleware())
	if o.AccessLog != nil {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
			Output: o.AccessLog,
		}))
	}
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        o.RateMax,
		Expiration: o.RateWindow,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/healthz"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c.UserContext(), "rate.global.hit", map[string]any{"ip": c.IP()})
			return c.Status(fiber.StatusTooManyRequests).JSON(apiError{Error: "rate limit exceeded, retry soon", Code: "rate_limited"})
		},
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "header:X-Csrf-Token",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   false, // set true behind HTTPS
		ContextKey:     "csrf",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c.UserContext(), "csrf.fail", map[string]any{"path": c.Path(), "reason": err.Error()})
			return c.Status(fiber.StatusForbidden).JSON(apiError{Error: "security check failed, refresh and retry", Code: "csrf"})
		},
	}))
	app.Use(Identify(d.Auth))

	Register(app, d, o)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(apiError{Error: "not found", Code: "not_found"})
	})
	return app
}

// Register mounts the API routes.
func Register(app *fiber.App, d *Deps, o Options) {
	o = o.withDefaults()
	api := app.Group("/api/v1")

	// Auth (login throttled)
	auth := api.Group("/auth")
	auth.Get("/csrf", d.AuthHandler.CSRF)
	auth.Post("/login", limiter.New(limiter.Config{
		Max:        o.LoginMax,
		Expiration: o.LoginWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|login"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c.UserContext(), "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(apiError{Error: "too many attempts, try again later", Code: "rate_limited"})
		},
	}), d.AuthHandler.Login)
	auth.Post("/logout", d.AuthHandler.Logout)
	auth.Get("/me", RequireUser(), d.AuthHandler.Me)

	// Catalog (public)
	api.Get("/cars", d.CarHandler.List)
	api.Get("/cars/:id", d.CarHandler.Detail)

	// Customer
	bookings := api.Group("/bookings", RequireUser())
	bookings.Post("/", d.BookingHandler.Create)
	bookings.Get("/", d.BookingHandler.Mine)
	bookings.Get("/:id", d.BookingHandler.Detail)
	bookings.Post("/:id/cancel", d.BookingHandler.Cancel)

	enquiries := api.Group("/enquiries", RequireUser())
	enquiries.Post("/", d.EnquiryHandler.Create)
	enquiries.Get("/", d.EnquiryHandler.Mine)
	enquiries.Get("/:id", d.EnquiryHandler.Detail)
	enquiries.Post("/:id/resolve", d.EnquiryHandler.Resolve)
	enquiries.Post("/:id/follow-up", d.EnquiryHandler.FollowUp)

	// Admin
	admin := api.Group("/admin", RequireAdmin())
	admin.Get("/dashboard", d.AdminHandler.Dashboard)
	admin.Get("/bookings", d.AdminHandler.ListBookings)
	admin.Post("/bookings/:id/decision", d.AdminHandler.Decide)
	admin.Get("/enquiries", d.AdminHandler.ListEnquiries)
	admin.Post("/enquiries/:id/reply", d.AdminHandler.Reply)
	admin.Post("/cars", d.AdminHandler.CreateCar)
	admin.Put("/cars/:id", d.AdminHandler.UpdateCar)
	admin.Delete("/cars/:id", d.AdminHandler.DeleteCar)
	admin.Post("/cars/:id/stock", d.AdminHandler.Stock)
	admin.Put("/cars/:id/images", d.AdminHandler.ReorderImages)
	admin.Post("/cars/:id/images", d.AdminHandler.AddImage)
	admin.Delete("/cars/:id/images", d.AdminHandler.RemoveImage)
}
