package handler

import (
	"go-pos-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type SettingsHandler struct {
	service service.SettingsService
}

func NewSettingsHandler(s service.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: s}
}

func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	setting, err := h.service.GetStoreSettings(c.UserContext())
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(setting)
}

func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	var req service.SettingsUpdate
	if err := bind(c, &req); err != nil {
		return renderError(c, err)
	}
	setting, err := h.service.UpdateStoreSettings(c.UserContext(), req, actor(c))
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Settings updated", "data": setting})
}
