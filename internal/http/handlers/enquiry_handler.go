package handlers

import (
	"carmarket/internal/services"

	"github.com/gofiber/fiber/v2"
)

type EnquiryHandler struct {
	Enquiries *services.EnquiryService
}

type enquiryRequest struct {
	CarID   string `json:"car_id"`
	Message string `json:"message"`
}

type messageRequest struct {
	Message string `json:"message"`
}

// POST /api/v1/enquiries
func (h *EnquiryHandler) Create(c *fiber.Ctx) error {
	var req enquiryRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, "enquiry.create", err)
	}
	e, err := h.Enquiries.Create(c.UserContext(), actorOf(c), req.CarID, req.Message)
	if err != nil {
		return mapError(c, "enquiry.create", err)
	}
	return c.Status(fiber.StatusCreated).JSON(e)
}

// GET /api/v1/enquiries
func (h *EnquiryHandler) Mine(c *fiber.Ctx) error {
	list, err := h.Enquiries.ListMine(c.UserContext(), actorOf(c))
	if err != nil {
		return mapError(c, "enquiry.list", err)
	}
	return c.JSON(fiber.Map{"enquiries": list, "count": len(list)})
}

// GET /api/v1/enquiries/:id
func (h *EnquiryHandler) Detail(c *fiber.Ctx) error {
	e, err := h.Enquiries.Get(c.UserContext(), actorOf(c), c.Params("id"))
	if err != nil {
		return mapError(c, "enquiry.detail", err)
	}
	return c.JSON(e)
}

// POST /api/v1/enquiries/:id/resolve
func (h *EnquiryHandler) Resolve(c *fiber.Ctx) error {
	e, err := h.Enquiries.Resolve(c.UserContext(), actorOf(c), c.Params("id"))
	if err != nil {
		return mapError(c, "enquiry.resolve", err)
	}
	return c.JSON(e)
}

// POST /api/v1/enquiries/:id/follow-up
func (h *EnquiryHandler) FollowUp(c *fiber.Ctx) error {
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, "enquiry.follow_up", err)
	}
	e, err := h.Enquiries.FollowUp(c.UserContext(), actorOf(c), c.Params("id"), req.Message)
	if err != nil {
		return mapError(c, "enquiry.follow_up", err)
	}
	return c.JSON(e)
}
