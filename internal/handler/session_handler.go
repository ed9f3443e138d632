package handler

import (
	"go-pos-ws/internal/middleware"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionHandler exposes open cart sessions. Every route except Open works on
// the session editing :id.
type SessionHandler struct {
	service *service.Service
}

func NewSessionHandler(s *service.Service) *SessionHandler {
	return &SessionHandler{service: s}
}

type addItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"uuid_required"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// amountRequest carries a discount. Negative amounts are clamped by the cart.
type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type paymentMethodRequest struct {
	Method model.PaymentMethod `json:"payment_method" validate:"required"`
}

type finalizeRequest struct {
	CashReceived *decimal.Decimal `json:"cash_received" validate:"omitempty,decimal_gte0"`
	Notes        *string          `json:"notes"`
}

type draftRequest struct {
	Notes          *string `json:"notes"`
	ClearCartAfter bool    `json:"clear_cart_after"`
}

func (h *SessionHandler) session(c *fiber.Ctx) (*service.CartSession, error) {
	id, err := paramUUID(c, "id")
	if err != nil {
		return nil, err
	}
	return h.service.Session(id)
}

func (h *SessionHandler) Open(c *fiber.Ctx) error {
	cashierID, cashierName := middleware.Cashier(c)
	session, err := h.service.Initialize(c.UserContext(), cashierID, cashierName)
	if err != nil {
		return renderError(c, err)
	}
	state, err := session.State(c.UserContext())
	if err != nil {
		return renderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Cart opened", "data": state})
}

func (h *SessionHandler) Get(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return renderError(c, err)
	}
	state, err := session.State(c.UserContext())
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(state)
}

func (h *SessionHandler) AddItem(c *fiber.Ctx) error {
	var req addItemRequest
	if err := bind(c, &req); err != nil {
		return renderError(c, err)
	}
	session, err := h.session(c)
	if err != nil {
		return renderError(c, err)
	}
	res, err := session.AddProduct(c.UserContext(), req.ProductID)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(res)
}

func (h *SessionHandler) SetQuantity(c *fiber.Ctx) error {
	var req quantityRequest
	if err := bind(c, &req); err != nil {
		return renderError(c, err)
	}
	productID, err := paramUUID(c, "productId")
	if err != nil {
		return renderError(c, err)
	}
	session, err := h.session(c)
	if err != nil {
		return renderError(c, err)
	}
	res, err := session.SetQuantity(c.UserContext(), productID, req.Quantity)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(res)
}

func (h *SessionHandler) SetItemDiscount(c *fiber.Ctx) error {
	var req amountRequest
	if err := bind(c, &req); err != nil {
		return renderError(c, err)
	}
	productID, err := paramUUID(c, "productId")
	if err != nil {
		return renderError(c, err)
	}
	session, err := h.session(c)
	if err != nil {
		return renderError(c, err)
	}
	res, err := session.SetItemDiscount(c.UserContext(), productID, req.Amount)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(res)
}

func (h *SessionHandler) RemoveItem(c *fiber.Ctx) error {
	productID, err := paramUUID(c, "productId")
	if err != nil {
		return renderError(c, err)
	}
	session, err := h.session(c)
	if err != nil {
		return renderError(c, err)
	}
	res, err := session.RemoveItem(c.UserContext(), productID)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(res)
}

func (h *SessionHandler) Clear(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return renderError(c, err)
	}
	res, err := session.Clear(c.UserContext())
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(res)
}

func (h *SessionHandler) SetGlobalDiscount(c *fiber.Ctx) error {
	var req amountRequest
	if err := bind(c, &req); err != nil {
		return renderError(c, err)
	}
	session, err := h.session(c)
	if err != nil {
		return renderError(c, err)
	}
	res, err := session.SetGlobalDiscount(c.UserContext(), req.Amount)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(res)
}

func (h *SessionHandler) SetPaymentMethod(c *fiber.Ctx) error {
	var req paymentMethodRequest
	if err := bind(c, &req); err != nil {
		return renderError(c, err)
	}
	if !req.Method.IsValid() {
		return badRequest(c, "unsupported payment method")
	}
	session, err := h.session(c)
	if err != nil {
		return renderError(c, err)
	}
	res, err := session.SetPaymentMethod(c.UserContext(), req.Method)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(res)
}

func (h *SessionHandler) Finalize(c *fiber.Ctx) error {
	var req finalizeRequest
	if err := bind(c, &req); err != nil {
		return renderError(c, err)
	}
	session, err := h.session(c)
	if err != nil {
		return renderError(c, err)
	}
	res, err := session.Finalize(c.UserContext(), service.FinalizeInput{
		CashReceived: req.CashReceived,
		Notes:        req.Notes,
	})
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Payment recorded", "data": res})
}

func (h *SessionHandler) SaveDraft(c *fiber.Ctx) error {
	var req draftRequest
	if err := bind(c, &req); err != nil {
		return renderError(c, err)
	}
	session, err := h.session(c)
	if err != nil {
		return renderError(c, err)
	}
	cashierID, cashierName := middleware.Cashier(c)
	res, err := session.SaveDraft(c.UserContext(), service.DraftInput{
		CashierID:      cashierID,
		CashierName:    cashierName,
		Notes:          req.Notes,
		ClearCartAfter: req.ClearCartAfter,
	})
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Draft saved", "data": res})
}

func (h *SessionHandler) Resync(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return renderError(c, err)
	}
	state, err := session.Resync(c.UserContext())
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(state)
}

func (h *SessionHandler) Close(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return renderError(c, err)
	}
	if err := h.service.Close(c.UserContext(), id); err != nil {
		return renderError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
