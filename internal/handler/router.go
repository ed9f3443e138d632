package handler

import (
	"go-pos-ws/internal/middleware"
	"go-pos-ws/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

// Handlers groups everything Mount registers.
type Handlers struct {
	Sessions     *SessionHandler
	Transactions *TransactionHandler
	Products     *ProductHandler
	Settings     *SettingsHandler
}

// Mount registers the authenticated API routes on router.
func Mount(router fiber.Router, signer *jwt.Signer, h Handlers) {
	protected := router.Group("", middleware.RequireCashier(signer))

	// Cart sessions
	sessions := protected.Group("/sessions")
	sessions.Post("/", h.Sessions.Open)
	sessions.Get("/:id", h.Sessions.Get)
	sessions.Delete("/:id", h.Sessions.Close)
	sessions.Post("/:id/items", h.Sessions.AddItem)
	sessions.Delete("/:id/items", h.Sessions.Clear)
	sessions.Put("/:id/items/:productId", h.Sessions.SetQuantity)
	sessions.Delete("/:id/items/:productId", h.Sessions.RemoveItem)
	sessions.Put("/:id/items/:productId/discount", h.Sessions.SetItemDiscount)
	sessions.Put("/:id/discount", h.Sessions.SetGlobalDiscount)
	sessions.Put("/:id/payment-method", h.Sessions.SetPaymentMethod)
	sessions.Post("/:id/finalize", h.Sessions.Finalize)
	sessions.Post("/:id/draft", h.Sessions.SaveDraft)
	sessions.Post("/:id/resync", h.Sessions.Resync)

	// Transactions
	protected.Get("/transactions", h.Transactions.List)
	protected.Post("/transactions", h.Transactions.Checkout)
	protected.Get("/transactions/:id", h.Transactions.Get)
	protected.Post("/transactions/:id/resume", h.Transactions.Resume)
	protected.Post("/transactions/:id/complete", middleware.RequirePrivilege(middleware.PrivilegeTransactionComplete), h.Transactions.Complete)

	// Catalog
	protected.Get("/products", h.Products.GetProducts)
	protected.Post("/products", middleware.RequirePrivilege(middleware.PrivilegeCatalogManage), h.Products.CreateProduct)
	protected.Put("/products/:id", middleware.RequirePrivilege(middleware.PrivilegeCatalogManage), h.Products.UpdateProduct)

	// Settings
	protected.Get("/settings", h.Settings.Get)
	protected.Put("/settings", middleware.RequirePrivilege(middleware.PrivilegeSettingsUpdate), h.Settings.Update)
}
