package handlers

import (
	"carmarket/internal/services"

	"github.com/gofiber/fiber/v2"
)

type CarHandler struct {
	Catalog *services.CatalogService
}

// GET /api/v1/cars
func (h *CarHandler) List(c *fiber.Ctx) error {
	cars, err := h.Catalog.ListCars(c.UserContext())
	if err != nil {
		return mapError(c, "cars.list", err)
	}
	return c.JSON(fiber.Map{"cars": cars, "count": len(cars)})
}

// GET /api/v1/cars/:id
func (h *CarHandler) Detail(c *fiber.Ctx) error {
	car, err := h.Catalog.GetCar(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(c, "cars.detail", err)
	}
	return c.JSON(car)
}
