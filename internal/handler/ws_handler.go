package handler

import (
	"context"
	"encoding/json"

	"go-pos-ws/internal/service"
	"go-pos-ws/internal/ws"
	"go-pos-ws/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// FeedHandler serves the websocket live feed. Clients passing
// ?transaction_id= receive updates for that transaction; everyone receives
// catalog stock updates.
type FeedHandler struct {
	hub     *ws.Hub
	service *service.Service
	log     *logger.Logger
}

func NewFeedHandler(hub *ws.Hub, s *service.Service, log *logger.Logger) *FeedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &FeedHandler{hub: hub, service: s, log: log}
}

// Upgrade rejects plain HTTP requests and bad transaction ids before the
// websocket handshake.
func (h *FeedHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.SendStatus(fiber.StatusUpgradeRequired)
	}
	if raw := c.Query("transaction_id"); raw != "" {
		if _, err := uuid.Parse(raw); err != nil {
			return badRequest(c, "invalid transaction_id")
		}
	}
	return c.Next()
}

func (h *FeedHandler) Serve() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		topic := c.Query("transaction_id")
		if topic != "" {
			h.sendSnapshot(c, topic)
		}

		h.hub.Register <- ws.Subscription{Conn: c, Topic: topic}
		defer func() { h.hub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	})
}

func (h *FeedHandler) sendSnapshot(c *websocket.Conn, topic string) {
	ctx := h.log.WithTransactionID(context.Background(), topic)
	view, err := h.service.Get(ctx, uuid.MustParse(topic))
	if err != nil {
		h.log.Warn(ctx, "ws snapshot unavailable")
		return
	}
	payload, err := json.Marshal(fiber.Map{"type": service.EventTransactionUpdate, "transaction": view})
	if err != nil {
		h.log.Error(ctx, "encode ws snapshot", err)
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
		h.log.Debug(ctx, "ws snapshot not delivered")
	}
}
