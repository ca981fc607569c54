package handlers

import (
	"carmarket/internal/services"

	"github.com/gofiber/fiber/v2"
)

// BookingHandler serves the customer side of the booking ledger.
type BookingHandler struct {
	Bookings *services.BookingService
}

type bookingRequest struct {
	CarID string `json:"car_id"`
}

// POST /api/v1/bookings
func (h *BookingHandler) Create(c *fiber.Ctx) error {
	var req bookingRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, "booking.create", err)
	}
	b, err := h.Bookings.CreateBooking(c.UserContext(), actorOf(c), req.CarID)
	if err != nil {
		return mapError(c, "booking.create", err)
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

// GET /api/v1/bookings
func (h *BookingHandler) Mine(c *fiber.Ctx) error {
	list, err := h.Bookings.ListMine(c.UserContext(), actorOf(c))
	if err != nil {
		return mapError(c, "booking.list", err)
	}
	return c.JSON(fiber.Map{"bookings": list, "count": len(list)})
}

// GET /api/v1/bookings/:id
func (h *BookingHandler) Detail(c *fiber.Ctx) error {
	b, err := h.Bookings.Get(c.UserContext(), actorOf(c), c.Params("id"))
	if err != nil {
		return mapError(c, "booking.detail", err)
	}
	return c.JSON(b)
}

// POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *fiber.Ctx) error {
	b, err := h.Bookings.Cancel(c.UserContext(), actorOf(c), c.Params("id"))
	if err != nil {
		return mapError(c, "booking.cancel", err)
	}
	return c.JSON(b)
}
