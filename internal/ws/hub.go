package ws

import (
	"context"
	"errors"
	"sync"

	"go-pos-ws/pkg/logger"

	"github.com/gofiber/contrib/websocket"
)

// TopicAll subscribes a client to every message.
const TopicAll = ""

// ErrHubStopped is returned by Publish once Stop has been called.
var ErrHubStopped = errors.New("websocket hub stopped")

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Subscription struct {
	Conn  Conn
	Topic string
}

type Message struct {
	Topic   string
	Payload []byte
}

// Hub fans messages out to websocket clients. A client subscribed to a topic
// receives messages for that topic and messages sent to TopicAll; a client
// subscribed to TopicAll receives everything.
type Hub struct {
	clients    map[Conn]string
	Register   chan Subscription
	Unregister chan Conn
	Broadcast  chan Message
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.Mutex
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[Conn]string),
		Register:   make(chan Subscription),
		Unregister: make(chan Conn),
		Broadcast:  make(chan Message, 64),
		done:       make(chan struct{}),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mutex.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return

		case sub := <-h.Register:
			h.mutex.Lock()
			h.clients[sub.Conn] = sub.Topic
			h.mutex.Unlock()
			h.log.Debug(h.log.WithField(context.Background(), "topic", sub.Topic), "ws client connected")

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			h.mutex.Lock()
			for conn, topic := range h.clients {
				if !matches(topic, message.Topic) {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, message.Payload); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Publish queues payload for clients of topic.
func (h *Hub) Publish(ctx context.Context, topic string, payload []byte) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.Broadcast <- Message{Topic: topic, Payload: payload}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

func matches(subscribed, topic string) bool {
	return subscribed == TopicAll || topic == TopicAll || subscribed == topic
}
