package progress

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 32

// Hub fans progress messages out to subscribers by connection id. Slow
// subscribers lose messages rather than block the sender.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan string]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan string]struct{})}
}

func NewConnectionID() string { return uuid.NewString() }

// Subscribe returns a channel of messages for id and a func that releases it.
func (h *Hub) Subscribe(id string) (<-chan string, func()) {
	ch := make(chan string, subscriberBuffer)

	h.mu.Lock()
	if h.subs[id] == nil {
		h.subs[id] = make(map[chan string]struct{})
	}
	h.subs[id][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[id], ch)
			if len(h.subs[id]) == 0 {
				delete(h.subs, id)
			}
			close(ch)
		})
	}
}

func (h *Hub) Push(_ context.Context, connectionID, message string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[connectionID] {
		select {
		case ch <- message:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribers(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[id])
}
