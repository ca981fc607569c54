package handlers

import (
	"carmarket/internal/domain"
	"carmarket/internal/services"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	Bookings  *services.BookingService
	Enquiries *services.EnquiryService
	Catalog   *services.CatalogService
}

// GET /api/v1/admin/dashboard
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	d, err := h.Bookings.Dashboard(c.UserContext(), actorOf(c))
	if err != nil {
		return mapError(c, "admin.dashboard", err)
	}
	return c.JSON(d)
}

// GET /api/v1/admin/bookings?status=pending
func (h *AdminHandler) ListBookings(c *fiber.Ctx) error {
	list, err := h.Bookings.ListAll(c.UserContext(), actorOf(c), c.Query("status"))
	if err != nil {
		return mapError(c, "admin.bookings.list", err)
	}
	return c.JSON(fiber.Map{"bookings": list, "count": len(list)})
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

// POST /api/v1/admin/bookings/:id/decision
func (h *AdminHandler) Decide(c *fiber.Ctx) error {
	var req decisionRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, "admin.bookings.decide", err)
	}
	b, err := h.Bookings.Decide(c.UserContext(), actorOf(c), c.Params("id"), domain.Decision(req.Decision))
	if err != nil {
		return mapError(c, "admin.bookings.decide", err)
	}
	return c.JSON(b)
}

// GET /api/v1/admin/enquiries
func (h *AdminHandler) ListEnquiries(c *fiber.Ctx) error {
	list, err := h.Enquiries.ListAll(c.UserContext(), actorOf(c))
	if err != nil {
		return mapError(c, "admin.enquiries.list", err)
	}
	return c.JSON(fiber.Map{"enquiries": list, "count": len(list)})
}

type replyRequest struct {
	Reply string `json:"reply"`
}

// POST /api/v1/admin/enquiries/:id/reply
func (h *AdminHandler) Reply(c *fiber.Ctx) error {
	var req replyRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, "admin.enquiries.reply", err)
	}
	e, err := h.Enquiries.Reply(c.UserContext(), actorOf(c), c.Params("id"), req.Reply)
	if err != nil {
		return mapError(c, "admin.enquiries.reply", err)
	}
	return c.JSON(e)
}

// POST /api/v1/admin/cars
func (h *AdminHandler) CreateCar(c *fiber.Ctx) error {
	var in services.CarInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, "admin.cars.create", err)
	}
	car, err := h.Catalog.CreateCar(c.UserContext(), actorOf(c), in)
	if err != nil {
		return mapError(c, "admin.cars.create", err)
	}
	return c.Status(fiber.StatusCreated).JSON(car)
}

// PUT /api/v1/admin/cars/:id
func (h *AdminHandler) UpdateCar(c *fiber.Ctx) error {
	var in services.CarInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, "admin.cars.update", err)
	}
	car, err := h.Catalog.UpdateCar(c.UserContext(), actorOf(c), c.Params("id"), in)
	if err != nil {
		return mapError(c, "admin.cars.update", err)
	}
	return c.JSON(car)
}

// DELETE /api/v1/admin/cars/:id
func (h *AdminHandler) DeleteCar(c *fiber.Ctx) error {
	if err := h.Catalog.DeleteCar(c.UserContext(), actorOf(c), c.Params("id")); err != nil {
		return mapError(c, "admin.cars.delete", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type stockRequest struct {
	Delta *int `json:"delta"`
	Stock *int `json:"stock"`
}

// POST /api/v1/admin/cars/:id/stock takes {"delta": n} for the +/- buttons
// or {"stock": n} to set the counter outright.
func (h *AdminHandler) Stock(c *fiber.Ctx) error {
	var req stockRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, "admin.cars.stock", err)
	}
	ctx, actor, id := c.UserContext(), actorOf(c), c.Params("id")
	switch {
	case req.Delta != nil && req.Stock == nil:
		n, err := h.Catalog.AdjustStock(ctx, actor, id, *req.Delta)
		if err != nil {
			return mapError(c, "admin.cars.stock", err)
		}
		return c.JSON(fiber.Map{"id": id, "stock": n})
	case req.Stock != nil && req.Delta == nil:
		if err := h.Catalog.SetStock(ctx, actor, id, *req.Stock); err != nil {
			return mapError(c, "admin.cars.stock", err)
		}
		return c.JSON(fiber.Map{"id": id, "stock": *req.Stock})
	}
	return mapError(c, "admin.cars.stock", domain.Invalid("stock", "send exactly one of delta or stock"))
}

type imagesRequest struct {
	Images []string `json:"images"`
}

type imageRequest struct {
	URL string `json:"url"`
}

// PUT /api/v1/admin/cars/:id/images reorders; the first URL becomes the cover.
func (h *AdminHandler) ReorderImages(c *fiber.Ctx) error {
	var req imagesRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, "admin.cars.images", err)
	}
	car, err := h.Catalog.ReorderImages(c.UserContext(), actorOf(c), c.Params("id"), req.Images)
	if err != nil {
		return mapError(c, "admin.cars.images", err)
	}
	return c.JSON(car)
}

// POST /api/v1/admin/cars/:id/images
func (h *AdminHandler) AddImage(c *fiber.Ctx) error {
	var req imageRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, "admin.cars.images", err)
	}
	car, err := h.Catalog.AddImage(c.UserContext(), actorOf(c), c.Params("id"), req.URL)
	if err != nil {
		return mapError(c, "admin.cars.images", err)
	}
	return c.JSON(car)
}

// DELETE /api/v1/admin/cars/:id/images?url=...
func (h *AdminHandler) RemoveImage(c *fiber.Ctx) error {
	car, err := h.Catalog.RemoveImage(c.UserContext(), actorOf(c), c.Params("id"), c.Query("url"))
	if err != nil {
		return mapError(c, "admin.cars.images", err)
	}
	return c.JSON(car)
}
