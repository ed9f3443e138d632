package service

import (
	"context"
	"encoding/json"
	"sync"

	"go-pos-ws/pkg/logger"

	"github.com/google/uuid"
)

// Feed event types.
const (
	EventTransactionUpdate = "transaction_update"
	EventStockUpdate       = "stock_update"
)

// TopicCatalog is the topic catalog events are published on. Every websocket
// client receives it.
const TopicCatalog = ""

// Publisher delivers a JSON payload to the subscribers of topic. The
// websocket hub and the Redis client both implement it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Feed distributes canonical transaction views to in-process watchers and
// to the external publisher.
type Feed struct {
	mu        sync.Mutex
	watchers  map[uuid.UUID]map[chan TransactionView]struct{}
	publisher Publisher
	log       *logger.Logger
}

func NewFeed(publisher Publisher, log *logger.Logger) *Feed {
	if log == nil {
		log = logger.Nop()
	}
	return &Feed{
		watchers:  make(map[uuid.UUID]map[chan TransactionView]struct{}),
		publisher: publisher,
		log:       log,
	}
}

// Publish hands view to watchers of its id. Slow watchers only keep the
// latest view. Publisher failures are logged; the write already happened.
func (f *Feed) Publish(ctx context.Context, view *TransactionView) {
	if view == nil || view.Transaction == nil {
		return
	}

	f.mu.Lock()
	for ch := range f.watchers[view.ID] {
		offerLatest(ch, *view)
	}
	f.mu.Unlock()

	if f.publisher == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":        EventTransactionUpdate,
		"transaction": view,
	})
	if err != nil {
		f.log.Error(ctx, "encode feed payload", err)
		return
	}
	if err := f.publisher.Publish(ctx, view.ID.String(), payload); err != nil {
		f.log.Warn(f.log.WithField(ctx, "error", err.Error()), "feed publish failed")
	}
}

// Subscribe registers a watcher for id, primed with initial when it is set.
// The returned cancel func closes the channel.
func (f *Feed) Subscribe(id uuid.UUID, initial *TransactionView) (<-chan TransactionView, func()) {
	ch := make(chan TransactionView, 1)

	f.mu.Lock()
	if f.watchers[id] == nil {
		f.watchers[id] = make(map[chan TransactionView]struct{})
	}
	f.watchers[id][ch] = struct{}{}
	if initial != nil {
		ch <- *initial
	}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.watchers[id], ch)
			if len(f.watchers[id]) == 0 {
				delete(f.watchers, id)
			}
			close(ch)
		})
	}
	return ch, cancel
}

func (f *Feed) watcherCount(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers[id])
}

func offerLatest(ch chan TransactionView, view TransactionView) {
	select {
	case ch <- view:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- view:
	default:
	}
}
