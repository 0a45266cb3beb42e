package events

import (
	"log"
	"sync"
	"time"
)

const subscriberBuffer = 16

// Hub broadcasts encoded events. A subscriber that falls behind loses
// events rather than blocking the publisher.
type Hub struct {
	mu      sync.Mutex
	seq     uint64
	clients map[chan string]struct{}
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan string]struct{}), now: time.Now}
}

func (h *Hub) Subscribe() chan string {
	ch := make(chan string, subscriberBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan string) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish matches the coordinator's OnEvent hook.
func (h *Hub) Publish(typ string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	evt, err := encode(h.seq, typ, data, h.now())
	if err != nil {
		log.Printf("[events] encode type=%q err=%v", typ, err)
		return
	}
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
			// drop if slow
		}
	}
}
