package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	failNext bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.messages))
	for i, m := range c.messages {
		out[i] = string(m)
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHubRoutesByTopic(t *testing.T) {
	hub := startHub(t)
	ctx := context.Background()

	txA, txB, everything := &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.Register <- Subscription{Conn: txA, Topic: "a"}
	hub.Register <- Subscription{Conn: txB, Topic: "b"}
	hub.Register <- Subscription{Conn: everything, Topic: TopicAll}

	require.NoError(t, hub.Publish(ctx, "a", []byte("for-a")))
	require.NoError(t, hub.Publish(ctx, TopicAll, []byte("catalog")))

	assert.Eventually(t, func() bool { return len(everything.received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return len(txB.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return len(txA.received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"for-a", "catalog"}, txA.received())
	assert.Equal(t, []string{"catalog"}, txB.received())
}

func TestHubDropsBrokenClients(t *testing.T) {
	hub := startHub(t)

	broken := &fakeConn{failNext: true}
	hub.Register <- Subscription{Conn: broken, Topic: "a"}
	require.NoError(t, hub.Publish(context.Background(), "a", []byte("x")))

	assert.Eventually(t, broken.isClosed, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubUnregisterAndStop(t *testing.T) {
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	left, stays := &fakeConn{}, &fakeConn{}
	hub.Register <- Subscription{Conn: left, Topic: "a"}
	hub.Register <- Subscription{Conn: stays, Topic: "a"}
	hub.Unregister <- left
	assert.Eventually(t, left.isClosed, time.Second, 5*time.Millisecond)

	hub.Stop()
	<-done
	assert.True(t, stays.isClosed())
	assert.ErrorIs(t, hub.Publish(context.Background(), "a", nil), ErrHubStopped)
}
