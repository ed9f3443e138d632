package handler

import (
	"go-pos-ws/internal/middleware"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type TransactionHandler struct {
	service *service.Service
}

func NewTransactionHandler(s *service.Service) *TransactionHandler {
	return &TransactionHandler{service: s}
}

func (h *TransactionHandler) List(c *fiber.Ctx) error {
	filter := repository.TransactionFilter{CashierID: c.Query("cashier_id")}
	if raw := c.Query("status"); raw != "" {
		status, err := model.ParseTransactionStatus(raw)
		if err != nil {
			return badRequest(c, "invalid status")
		}
		filter.Status = status
	}
	var err error
	if filter.Limit, err = queryInt(c, "limit", 50); err != nil {
		return renderError(c, err)
	}
	if filter.Offset, err = queryInt(c, "offset", 0); err != nil {
		return renderError(c, err)
	}

	transactions, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(transactions)
}

func (h *TransactionHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return renderError(c, err)
	}
	transaction, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(transaction)
}

// Checkout sells a cart sent in one request.
func (h *TransactionHandler) Checkout(c *fiber.Ctx) error {
	var req service.CheckoutInput
	if err := bind(c, &req); err != nil {
		return renderError(c, err)
	}
	req.CashierID, req.CashierName = middleware.Cashier(c)

	res, err := h.service.Checkout(c.UserContext(), req)
	if err != nil {
		return renderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Transaction recorded", "data": res})
}

func (h *TransactionHandler) Complete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return renderError(c, err)
	}
	transaction, err := h.service.Complete(c.UserContext(), id)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Transaction completed", "data": transaction})
}

// Resume reopens a stored draft in a new session.
func (h *TransactionHandler) Resume(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return renderError(c, err)
	}
	session, err := h.service.Resume(c.UserContext(), id)
	if err != nil {
		return renderError(c, err)
	}
	state, err := session.State(c.UserContext())
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Draft resumed", "data": state})
}
