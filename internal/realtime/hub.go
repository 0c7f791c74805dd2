package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// EventType определяет тип события для клиентов
type EventType string

const (
	EventNewMessage     EventType = "new_message"
	EventNewChat        EventType = "new_chat"
	EventListingUpdated EventType = "listing_updated"
	EventSwapUpdated    EventType = "swap_updated"
)

// Event представляет событие, доставляемое клиенту при опросе
type Event struct {
	Type      EventType       `json:"type"`
	ChatID    string          `json:"chat_id,omitempty"`
	ListingID string          `json:"listing_id,omitempty"`
	MatchID   string          `json:"match_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Максимальное количество событий, которые держим на пользователя
// между опросами. При переполнении старые события вытесняются.
const defaultBufferCapacity = 128

// Hub хранит очереди событий по пользователям. Клиенты опрашивают свою
// очередь через GET /api/realtime/events; публикация не блокируется.
type Hub struct {
	mu       sync.RWMutex
	buffers  map[string][]Event
	capacity int
}

// NewHub создает новый экземпляр Hub
func NewHub() *Hub {
	return &Hub{
		buffers:  make(map[string][]Event),
		capacity: defaultBufferCapacity,
	}
}

// Publish добавляет событие в очередь пользователя
func (h *Hub) Publish(userID string, event Event) {
	if userID == "" {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	buf := h.buffers[userID]
	if len(buf) >= h.capacity {
		// Клиент давно не опрашивал очередь, вытесняем самое старое событие
		log.Printf("Очередь событий пользователя %s переполнена, вытесняем старые", userID)
		buf = buf[1:]
	}

	h.buffers[userID] = append(buf, event)
}

// PublishToAll добавляет событие в очереди нескольких пользователей
func (h *Hub) PublishToAll(userIDs []string, event Event) {
	for _, id := range userIDs {
		h.Publish(id, event)
	}
}

// Drain возвращает накопленные события пользователя и очищает очередь
func (h *Hub) Drain(userID string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := h.buffers[userID]
	if len(buf) == 0 {
		return []Event{}
	}

	delete(h.buffers, userID)
	return buf
}

// Pending возвращает количество событий в очереди пользователя
func (h *Hub) Pending(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.buffers[userID])
}
