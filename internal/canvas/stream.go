package canvas

import (
	"encoding/json"
	"sync"
	"time"
)

// Stream message types.
const (
	MessageMerge   = "merge"
	MessageReplace = "replace"
	MessageDelete  = "delete"
)

// StreamMessage is the envelope sent to live subscribers after every write.
type StreamMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"ts"`
}

// Hub fans out stream messages to subscribers of a session.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan StreamMessage]struct{}
}

// NewHub creates a new hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan StreamMessage]struct{})}
}

// Subscribe registers a listener for a session. The returned cancel func
// unregisters and closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan StreamMessage, func()) {
	ch := make(chan StreamMessage, 16)
	h.mu.Lock()
	listeners := h.subscribers[sessionID]
	if listeners == nil {
		listeners = make(map[chan StreamMessage]struct{})
		h.subscribers[sessionID] = listeners
	}
	listeners[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			listeners := h.subscribers[sessionID]
			if listeners != nil {
				delete(listeners, ch)
				if len(listeners) == 0 {
					delete(h.subscribers, sessionID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of listeners on a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[sessionID])
}

// Broadcast delivers msg to every subscriber of its session. Slow
// subscribers with a full buffer miss the message.
func (h *Hub) Broadcast(msg StreamMessage) {
	if h == nil {
		return
	}
	h.mu.RLock()
	listeners := h.subscribers[msg.SessionID]
	for ch := range listeners {
		select {
		case ch <- msg:
		default:
		}
	}
	h.mu.RUnlock()
}
