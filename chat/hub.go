package chat

import (
	"sync"

	"github.com/moimhub/club-system/models"
)

const EventMessage = "message"

// Event — событие live-ленты. Пока единственный тип: вставка сообщения.
type Event struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message,omitempty"`
}

// Subscription — подписка одного потребителя на комнату. Hub закрывает C,
// если буфер подписчика переполнен: медленный потребитель не должен
// тормозить раздачу, он переподключится сам (см. ChannelManager).
type Subscription struct {
	C    chan Event
	room string
	hub  *Hub

	mu     sync.Mutex
	closed bool
}

func (s *Subscription) Cancel() {
	s.hub.unsubscribe(s)
}

func (s *Subscription) closeOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.C)
		s.closed = true
	}
}

// Feed абстрагирует Hub для ChannelManager (в тестах подменяется фейком).
type Feed interface {
	Subscribe(room string, buffer int) *Subscription
}

// Hub раздает события по комнатам. Комната — идентичность канала
// (ChannelID.Room()); подписчики — живые ChannelManager'ы.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscription]bool
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Subscription]bool),
	}
}

// Subscribe регистрирует подписку синхронно: к моменту возврата событие,
// опубликованное после вызова, гарантированно попадет в C. Вызывающий
// поэтому подписывается ДО загрузки истории и дедуплицирует пересечение.
func (h *Hub) Subscribe(room string, buffer int) *Subscription {
	sub := &Subscription{
		C:    make(chan Event, buffer),
		room: room,
		hub:  h,
	}
	h.mu.Lock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Subscription]bool)
	}
	h.rooms[room][sub] = true
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if subs, ok := h.rooms[sub.room]; ok {
		if subs[sub] {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.rooms, sub.room)
			}
		}
	}
	h.mu.Unlock()
	sub.closeOnce()
}

// Publish доставляет событие всем подписчикам комнаты. Подписчик с полным
// буфером отбрасывается: его канал закрывается, комната чистится.
func (h *Hub) Publish(room string, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[room]
	if !ok {
		return
	}
	for sub := range subs {
		select {
		case sub.C <- event:
		default:
			delete(subs, sub)
			sub.closeOnce()
		}
	}
	if len(subs) == 0 {
		delete(h.rooms, room)
	}
}

// RoomSize — количество живых подписчиков комнаты (для тестов и метрик).
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
