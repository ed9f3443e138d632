package handler

import (
	"go-pos-ws/internal/middleware"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	service service.CatalogService
}

func NewProductHandler(s service.CatalogService) *ProductHandler {
	return &ProductHandler{service: s}
}

func actor(c *fiber.Ctx) service.Actor {
	id, name := middleware.Cashier(c)
	return service.Actor{ID: id, Name: name}
}

func (h *ProductHandler) GetProducts(c *fiber.Ctx) error {
	products, err := h.service.ListProducts(c.UserContext(), c.QueryBool("include_inactive"))
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(products)
}

func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var product model.Product
	if err := c.BodyParser(&product); err != nil {
		return badRequest(c, "invalid JSON")
	}

	if err := h.service.CreateProduct(c.UserContext(), &product, actor(c)); err != nil {
		return renderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product created", "data": product})
}

func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	productID, err := paramUUID(c, "id")
	if err != nil {
		return renderError(c, err)
	}

	var product model.Product
	if err := c.BodyParser(&product); err != nil {
		return badRequest(c, "invalid JSON")
	}

	updated, err := h.service.UpdateProduct(c.UserContext(), productID, &product, actor(c))
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": updated})
}
